package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("invalid config")

// Validate checks field values that can be checked without side effects.
// Schedule syntax is checked by the reports package.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "memory", "mem", "file":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required when storage.driver=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver: %s", c.Storage.Driver))
	}

	durations := map[string]string{
		"storage.busy_timeout":      c.Storage.BusyTimeout,
		"scheduler.conflict_window": c.Scheduler.ConflictWindow,
		"timer.tick_interval":       c.Timer.TickInterval,
		"notifier.retry_base":       c.Notifier.RetryBase,
		"notifier.retry_max_delay":  c.Notifier.RetryMaxDelay,
		"notifier.dedup_window":     c.Notifier.DedupWindow,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Notifier.Workers < 0 || c.Notifier.QueueSize < 0 || c.Notifier.RatePerSec < 0 || c.Notifier.RetryMax < 0 {
		errs = append(errs, errors.New("notifier: counts must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
