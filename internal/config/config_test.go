package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadMissingFileUsesDefault(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "missing.json"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("Load = %+v, want Default()", cfg)
	}
	if m.Get() != cfg {
		t.Fatalf("Get did not return the committed config")
	}
}

func TestParseJSONOverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"storage":{"driver":"sqlite","path":"/tmp/tc.db"},"scheduler":{"conflict_window":"30m"}}`)

	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/tmp/tc.db" {
		t.Fatalf("Storage = %+v", cfg.Storage)
	}
	if cfg.Scheduler.ConflictWindow != "30m" {
		t.Fatalf("ConflictWindow = %q, want 30m", cfg.Scheduler.ConflictWindow)
	}
	if cfg.Timer.TickInterval != "1s" {
		t.Fatalf("TickInterval = %q, want default 1s", cfg.Timer.TickInterval)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
logging:
  level: debug
  console: false
reports:
  enabled: true
  daily: "@daily"
  timezone: UTC
notifier:
  workers: 3
  dedup_window: 1m
`)
	cfg, err := NewConfigManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Console {
		t.Fatalf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Reports.Enabled || cfg.Reports.Daily != "@daily" || cfg.Reports.Timezone != "UTC" {
		t.Fatalf("Reports = %+v", cfg.Reports)
	}
	if cfg.Notifier.Workers != 3 || cfg.Notifier.DedupWindow != "1m" {
		t.Fatalf("Notifier = %+v", cfg.Notifier)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown field", file: "c.json", body: `{"sync":{}}`},
		{name: "trailing data", file: "c.json", body: `{} {}`},
		{name: "bad yaml", file: "c.yml", body: "logging: [unterminated"},
		{name: "bad duration", file: "c.json", body: `{"timer":{"tick_interval":"soon"}}`},
		{name: "unknown driver", file: "c.json", body: `{"storage":{"driver":"redis"}}`},
		{name: "sqlite without path", file: "c.json", body: `{"storage":{"driver":"sqlite","path":""}}`},
		{name: "bad level", file: "c.json", body: `{"logging":{"level":"loud"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.body)
			if _, err := NewConfigManager(path).Parse(); err == nil {
				t.Fatalf("Parse(%s) = nil error, want error", tt.body)
			}
		})
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Scheduler.ConflictWindow = "-1h"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Validate = %v, want ErrInvalid", err)
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: time.Hour},
		{raw: "0s", want: time.Hour},
		{raw: "90m", want: 90 * time.Minute},
		{raw: "1000000", want: 1000 * time.Second},
		{raw: "2d", want: 48 * time.Hour},
		{raw: " 0 ", want: time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("x", tt.raw, time.Hour)
		if err != nil {
			t.Fatalf("ParseDurationOrDefault(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	for _, raw := range []string{"nope", "-1s", "d", "3x"} {
		if _, err := ParseDurationOrDefault("x", raw, time.Hour); err == nil {
			t.Fatalf("ParseDurationOrDefault(%q): expected error", raw)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := Default()
	newCfg := Default()
	newCfg.Timer.TickInterval = "500ms"
	newCfg.Reports.Enabled = true
	newCfg.Storage.Driver = "sqlite"
	newCfg.Storage.Path = "./tc.db"

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"reports", "storage", "timer"}
	if !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatalf("attrs empty")
	}

	if changed, _ := SummarizeConfigChange(oldCfg, Default()); len(changed) != 0 {
		t.Fatalf("identical configs reported %v", changed)
	}
}

func TestSubscribeKeepsLatest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	a, b := Default(), Default()
	b.Timer.TickInterval = "2s"

	m.publish(a)
	m.publish(b)
	if got := <-ch; got != b {
		t.Fatalf("received stale config")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel open after Unsubscribe")
	}
}

func TestWatchPublishesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{"timer":{"tick_interval":"1s"}}`)

	m := NewConfigManager(path)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		// Rewrite until the watcher is up and picks the change.
		writeFile(t, path, `{"timer":{"tick_interval":"2s"}}`)
		select {
		case cfg := <-ch:
			if cfg.Timer.TickInterval != "2s" {
				t.Fatalf("TickInterval = %q, want 2s", cfg.Timer.TickInterval)
			}
			return
		case <-deadline:
			t.Fatalf("no reload published")
		case <-tick.C:
		}
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		body string
		want format
	}{
		{path: "c.json", body: "timer: {}", want: formatJSON},
		{path: "c.yml", body: "{}", want: formatYAML},
		{path: "taskclock.conf", body: "  {\"timer\":{}}", want: formatJSON},
		{path: "taskclock.conf", body: "timer:\n  tick_interval: 1s\n", want: formatYAML},
	}
	for _, tt := range tests {
		if got := detectFormat(tt.path, []byte(tt.body)); got != tt.want {
			t.Fatalf("detectFormat(%q, %q) = %s, want %s", tt.path, tt.body, got, tt.want)
		}
	}
}

func TestDecodeYAMLWithoutExtension(t *testing.T) {
	t.Parallel()
	cfg := Default()
	body := "scheduler:\n  conflict_window: 30m\nstorage:\n  driver: memory\n"
	if err := decode("taskclock.conf", []byte(body), cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Scheduler.ConflictWindow != "30m" || cfg.Storage.Driver != "memory" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Timer.TickInterval != "1s" {
		t.Fatalf("TickInterval = %q, want default 1s", cfg.Timer.TickInterval)
	}
}
