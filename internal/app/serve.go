package app

import (
	"context"
	"strings"
	"time"

	"taskclock/internal/config"
	"taskclock/internal/eventbus"
	"taskclock/internal/observability/debug"
	"taskclock/internal/reports"
	"taskclock/internal/runtime/supervisor"
	"taskclock/internal/task/scheduler"
	logx "taskclock/pkg/logx"
)

// Start runs the long-lived side of the app: digest reports, config hot
// reload and event logging. Load must have been called.
func (a *App) Start(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.reports = a.newReports()
	if err := a.reports.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	a.debug = debug.New(mapDebugConfig(a.cfg.Load()), func() any { return a.Status() }, a.log)
	a.debug.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				// Ticks and renders are frequent; keep them at trace.
				if e.Type == eventbus.TimerTick || e.Type == eventbus.Render {
					a.log.Trace("event", logx.String("type", e.Type), logx.String("task", e.TaskID))
					continue
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.String("task", e.TaskID))
			}
		}
	})

	if a.cfgm != nil {
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validateConfig(cfg) })
		sub := a.cfgm.Subscribe(8)
		a.sup.Go("config.reload", func(c context.Context) error {
			defer a.cfgm.Unsubscribe(sub)
			for {
				select {
				case <-c.Done():
					return nil
				case newCfg, ok := <-sub:
					if !ok {
						return nil
					}
					a.applyConfig(newCfg)
				}
			}
		})
		a.sup.GoRestart("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	a.log.Info("app started", logx.Int("tasks", a.store.Len()))
	return nil
}

// Done is closed when the serve context ends or a supervised loop fails.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error of a supervised loop.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop shuts the serve loops down and closes the app. Each step is bounded
// so one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		a.sup.Cancel()
	}

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	if a.debug != nil {
		step("debug", 2*time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	}
	if a.reports != nil {
		step("reports", 2*time.Second, func(c context.Context) error { a.reports.Stop(c); return nil })
	}
	if a.sup != nil {
		step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	}
	var err error
	step("app", 3*time.Second, func(c context.Context) error {
		err = a.Close(c)
		return err
	})
	return err
}

// applyConfig applies a validated hot reload. Storage and tick interval
// changes need a restart.
func (a *App) applyConfig(newCfg *config.Config) {
	prev := a.cfg.Load()
	sections, attrs := config.SummarizeConfigChange(prev, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.cfg.Store(newCfg)

	for _, s := range sections {
		switch s {
		case "logging":
			if a.logs != nil {
				if err := a.logs.Apply(mapLoggingConfig(newCfg)); err != nil {
					a.log.Warn("log file sink disabled", logx.Err(err))
				}
			}
		case "storage", "timer":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		case "scheduler":
			window, err := mapSchedulerWindow(newCfg)
			if err != nil {
				a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
				continue
			}
			a.mu.Lock()
			a.sched = scheduler.New(window)
			a.mu.Unlock()
		case "notifier":
			ncfg, err := mapNotifierConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
				continue
			}
			a.notif.Apply(ncfg)
		case "debug":
			if a.debug != nil {
				a.debug.Reconfigure(a.sup.Context(), mapDebugConfig(newCfg))
			}
		case "reports":
			if a.reports == nil {
				continue
			}
			if err := a.reports.Apply(mapReportsConfig(newCfg)); err != nil {
				a.log.Warn("reports config rejected; restoring previous", logx.Err(err))
				_ = a.reports.Apply(mapReportsConfig(prev))
			}
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: sections})
}

// Report publishes the named digest ("daily" or "weekly") through the
// notifier right away. It does not need Start.
func (a *App) Report(ctx context.Context, name string) error {
	if err := a.ready(); err != nil {
		return err
	}
	r := a.reports
	if r == nil {
		r = a.newReports()
	}
	return r.RunNow(ctx, name)
}

func (a *App) newReports() *reports.Service {
	r := reports.New(mapReportsConfig(a.cfg.Load()), a.store.List, a.notif, a.bus, a.log)
	r.SetNow(a.now)
	return r
}
