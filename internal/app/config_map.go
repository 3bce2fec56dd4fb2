package app

import (
	"fmt"
	"strings"
	"time"

	"taskclock/internal/config"
	"taskclock/internal/notifier"
	"taskclock/internal/observability/debug"
	"taskclock/internal/reports"
	"taskclock/internal/storage"
	"taskclock/internal/task/scheduler"
	"taskclock/internal/timer"
	logx "taskclock/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "memory", "mem":
		return storage.Config{Driver: "memory"}, nil
	case "file":
		if path == "" {
			path = "./taskclock"
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapSchedulerWindow(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("scheduler.conflict_window", cfg.Scheduler.ConflictWindow, scheduler.DefaultWindow)
}

func mapTimerConfig(cfg *config.Config) (timer.Config, error) {
	d, err := config.ParseDurationOrDefault("timer.tick_interval", cfg.Timer.TickInterval, timer.DefaultTickInterval)
	if err != nil {
		return timer.Config{}, err
	}
	return timer.Config{TickInterval: d}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := cfg.Notifier
	if nc.Workers < 0 || nc.QueueSize < 0 || nc.RatePerSec < 0 || nc.RetryMax < 0 {
		return notifier.Config{}, fmt.Errorf("notifier: counts must be >= 0")
	}
	base, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	dedup, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       base,
		RetryMaxDelay:   maxDelay,
		DedupWindow:     dedup,
		DedupMaxEntries: nc.DedupMaxEntries,
	}, nil
}

func mapReportsConfig(cfg *config.Config) reports.Config {
	return reports.Config{
		Enabled:  cfg.Reports.Enabled,
		Daily:    cfg.Reports.Daily,
		Weekly:   cfg.Reports.Weekly,
		Timezone: cfg.Reports.Timezone,
	}
}

func mapDebugConfig(cfg *config.Config) debug.Config {
	return debug.Config{
		Enabled: cfg.Debug.Enabled,
		Addr:    strings.TrimSpace(cfg.Debug.Addr),
		Token:   strings.TrimSpace(cfg.Debug.Token),
	}
}

// validateConfig is the hot-reload gate: a config that fails here is never
// committed.
func validateConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerWindow(cfg); err != nil {
		return err
	}
	if _, err := mapTimerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	return reports.Validate(mapReportsConfig(cfg))
}
