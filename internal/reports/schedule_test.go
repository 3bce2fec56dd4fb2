package reports

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "0 8 * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@weekly", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * 0", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "12h", kind: SpecInterval, source: "duration", duration: 12 * time.Hour},
		{name: "prefixed interval", raw: "every:45m", kind: SpecInterval, source: "duration", duration: 45 * time.Minute},
		{name: "hhmm", raw: "24:00", kind: SpecInterval, source: "hhmm", duration: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "every:", "00:75", "-5m"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q) = nil error, want error", raw)
		}
	}
}

func TestIntervalScheduleSpreadsFirstRun(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, time.March, 13, 8, 0, 0, 0, time.UTC)
	sched, jitter := intervalSchedule(time.Hour, now, "daily")
	if jitter < 0 || jitter >= maxStartupSpread {
		t.Fatalf("jitter = %v, want [0, %v)", jitter, maxStartupSpread)
	}
	first := sched.Next(now)
	if want := now.Add(time.Hour + jitter); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	second := sched.Next(first)
	if second.Sub(first) < time.Hour-time.Second || second.Sub(first) > time.Hour {
		t.Fatalf("second run %v after first, want ~1h", second.Sub(first))
	}
}

func TestSpecBuildCron(t *testing.T) {
	t.Parallel()
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	spec, err := ParseSchedule("0 8 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	sched, err := spec.build(parser, time.Now(), "daily")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	now := time.Date(2024, time.March, 13, 9, 0, 0, 0, time.UTC)
	if got, want := sched.Next(now), time.Date(2024, time.March, 14, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}
