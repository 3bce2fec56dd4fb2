package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("500ms", "1h"). Omitted sections fall back to Default().
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Timer     TimerConfig     `json:"timer"`
	Notifier  NotifierConfig  `json:"notifier"`
	Reports   ReportsConfig   `json:"reports"`
	Debug     DebugConfig     `json:"debug"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects where the task list is persisted.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./taskclock.db", "busy_timeout": "2s" }
type StorageConfig struct {
	Driver      string `json:"driver"` // memory | file | sqlite
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// SchedulerConfig controls due-date conflict resolution.
type SchedulerConfig struct {
	// ConflictWindow is both the conflict threshold and the reschedule shift.
	ConflictWindow string `json:"conflict_window"`
}

type TimerConfig struct {
	TickInterval string `json:"tick_interval"`
}

// NotifierConfig controls the async notification pipeline.
type NotifierConfig struct {
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
}

// ReportsConfig schedules summary digests. Schedules accept cron
// expressions ("0 8 * * *", "@daily") or intervals ("24h", "every:12h").
type ReportsConfig struct {
	Enabled  bool   `json:"enabled"`
	Daily    string `json:"daily,omitempty"`
	Weekly   string `json:"weekly,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// DebugConfig exposes /healthz, /status and pprof in serve mode. Binding to
// a non-loopback address requires a token.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file", Path: "./taskclock"},
		Scheduler: SchedulerConfig{
			ConflictWindow: "1h",
		},
		Timer: TimerConfig{TickInterval: "1s"},
		Notifier: NotifierConfig{
			Workers:     1,
			QueueSize:   64,
			RatePerSec:  5,
			RetryMax:    2,
			RetryBase:   "200ms",
			DedupWindow: "10s",
		},
		Reports: ReportsConfig{
			Enabled: false,
			Daily:   "0 8 * * *",
			Weekly:  "0 8 * * 0",
		},
		Debug: DebugConfig{Addr: "127.0.0.1:6060"},
	}
}
