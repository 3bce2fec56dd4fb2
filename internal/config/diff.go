package config

import (
	"sort"
	"strings"

	logx "taskclock/pkg/logx"
)

// SummarizeConfigChange returns the sorted list of changed sections and
// structured fields describing their new values for logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oldS, newS := oldCfg.Storage, newCfg.Storage
	if !strings.EqualFold(strings.TrimSpace(oldS.Driver), strings.TrimSpace(newS.Driver)) ||
		strings.TrimSpace(oldS.Path) != strings.TrimSpace(newS.Path) ||
		strings.TrimSpace(oldS.BusyTimeout) != strings.TrimSpace(newS.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.String("storage.path", strings.TrimSpace(newS.Path)),
			logx.String("storage.busy_timeout", strings.TrimSpace(newS.BusyTimeout)),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.ConflictWindow) != strings.TrimSpace(newCfg.Scheduler.ConflictWindow) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.conflict_window", strings.TrimSpace(newCfg.Scheduler.ConflictWindow)))
	}

	if strings.TrimSpace(oldCfg.Timer.TickInterval) != strings.TrimSpace(newCfg.Timer.TickInterval) {
		changed = append(changed, "timer")
		attrs = append(attrs, logx.String("timer.tick_interval", strings.TrimSpace(newCfg.Timer.TickInterval)))
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.workers", newCfg.Notifier.Workers),
			logx.Int("notifier.queue_size", newCfg.Notifier.QueueSize),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.retry_max", newCfg.Notifier.RetryMax),
			logx.String("notifier.dedup_window", newCfg.Notifier.DedupWindow),
		)
	}

	if oldCfg.Reports != newCfg.Reports {
		changed = append(changed, "reports")
		attrs = append(attrs,
			logx.Bool("reports.enabled", newCfg.Reports.Enabled),
			logx.String("reports.daily", newCfg.Reports.Daily),
			logx.String("reports.weekly", newCfg.Reports.Weekly),
			logx.String("reports.timezone", newCfg.Reports.Timezone),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", newCfg.Debug.Addr),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
