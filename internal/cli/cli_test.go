package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type harness struct {
	t   *testing.T
	cfg string
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "taskclock.yaml")
	body := "logging:\n  level: error\nstorage:\n  driver: file\n  path: " + filepath.Join(dir, "tasks") + "\ntimer:\n  tick_interval: 1h\nnotifier:\n  dedup_window: 0s\nreports:\n  timezone: UTC\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return &harness{t: t, cfg: cfg, now: time.Date(2024, time.March, 13, 12, 0, 0, 0, time.UTC)}
}

// run executes one command in a fresh process-like root and returns stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := newRootCmd(&options{loc: time.UTC, now: func() time.Time { return h.now }})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", h.cfg, "--log-level", "error"}, args...))
	root.SetContext(context.Background())
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v: %v\noutput:\n%s", args, err, out)
	}
	return out
}

// addedID returns the short id printed by add.
func addedID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) > 1 && f[0] == "Added" {
			return f[1]
		}
	}
	t.Fatalf("no Added line in %q", out)
	return ""
}

func summaryValue(out, label string) string {
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) == 2 && f[0] == label {
			return f[1]
		}
	}
	return ""
}

func TestAddConflictAndList(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("add", "-t", "Write report", "-d", "quarterly numbers", "--due", "2024-03-13T15:00")
	if !strings.Contains(out, `"Write report" due 2024-03-13 15:00`) {
		t.Fatalf("add output = %q", out)
	}
	out = h.mustRun("add", "-t", "Review", "-d", "peer review", "--due", "2024-03-13T15:30", "-p", "high")
	if !strings.Contains(out, `Conflict detected! Rescheduling task "Review" to the next available slot.`) {
		t.Fatalf("conflict notice missing: %q", out)
	}
	if !strings.Contains(out, "due 2024-03-13 16:00") {
		t.Fatalf("rescheduled due missing: %q", out)
	}

	out = h.mustRun("list")
	first := strings.Index(out, "Write report")
	second := strings.Index(out, "Review")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("list order wrong:\n%s", out)
	}
	if !strings.Contains(out, "Completed: 0 / Total: 2") {
		t.Fatalf("list footer missing:\n%s", out)
	}
}

func TestAddRejectsMissingFields(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("add", "-t", "No description", "--due", "2024-03-13T15:00"); err == nil {
		t.Fatalf("add without description succeeded")
	}
	if _, err := h.run("add", "-t", "x", "-d", "y", "--due", "tomorrow"); err == nil {
		t.Fatalf("add with bad due date succeeded")
	}
	if out := h.mustRun("list"); !strings.Contains(out, "No tasks.") {
		t.Fatalf("list = %q, want no tasks", out)
	}
}

func TestDoneSummaryAndDelete(t *testing.T) {
	h := newHarness(t)
	today := addedID(t, h.mustRun("add", "-t", "Today", "-d", "due today", "--due", "2024-03-13T18:00"))
	late := addedID(t, h.mustRun("add", "-t", "Late", "-d", "due yesterday", "--due", "2024-03-12T09:00"))

	if out := h.mustRun("done", today); !strings.Contains(out, "marked completed") {
		t.Fatalf("done output = %q", out)
	}
	out := h.mustRun("summary")
	for _, want := range []string{"Completed: 1 / Total: 1", "Completed: 1 / Total: 2", "Late"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if got := summaryValue(out, "Overdue"); got != "1" {
		t.Fatalf("Overdue = %q, want 1:\n%s", got, out)
	}

	h.mustRun("delete", late)
	if _, err := h.run("delete", late); err == nil {
		t.Fatalf("second delete succeeded")
	}
	if out := h.mustRun("search", "yesterday"); !strings.Contains(out, "No tasks.") {
		t.Fatalf("search after delete = %q", out)
	}
}

func TestTimerCommands(t *testing.T) {
	h := newHarness(t)
	id := addedID(t, h.mustRun("add", "-t", "Focus", "-d", "deep work", "--due", "2024-03-14T10:00"))

	steps := []struct {
		args []string
		want string
	}{
		{args: []string{"start", id}, want: "running"},
		{args: []string{"pause", id}, want: "paused"},
		{args: []string{"resume", id}, want: "running"},
		{args: []string{"stop", id}, want: "idle"},
		{args: []string{"reset", id}, want: "idle 00:00:00"},
	}
	for _, s := range steps {
		if out := h.mustRun(s.args...); !strings.Contains(out, s.want) {
			t.Fatalf("%v = %q, want %q", s.args, out, s.want)
		}
	}
	if _, err := h.run("pause", id); err == nil {
		t.Fatalf("pause on idle timer succeeded")
	}
}

func TestEditKeepsUnsetFields(t *testing.T) {
	h := newHarness(t)
	id := addedID(t, h.mustRun("add", "-t", "Draft", "-d", "first pass", "--due", "2024-03-15T09:00", "-p", "low"))

	out := h.mustRun("edit", id, "-t", "Final")
	if !strings.Contains(out, `"Final" due 2024-03-15 09:00`) {
		t.Fatalf("edit output = %q", out)
	}
	out = h.mustRun("list")
	if strings.Contains(out, "Draft") || !strings.Contains(out, "low") {
		t.Fatalf("list after edit:\n%s", out)
	}
}

func TestReportDaily(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "-t", "Standup", "-d", "team sync", "--due", "2024-03-13T16:00")
	out := h.mustRun("report", "daily")
	if !strings.Contains(out, "Daily summary for Wed Mar 13: 1 due, 0 completed.") {
		t.Fatalf("report output = %q", out)
	}
	if _, err := h.run("report", "monthly"); err == nil {
		t.Fatalf("report monthly succeeded")
	}
}
