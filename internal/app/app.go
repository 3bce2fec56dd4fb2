// Package app wires the task store, timer engine, scheduler, notifier and
// summaries into the facade the view layer calls.
//
// Every operation is keyed by task.ID. After each state change, including
// every timer tick, the registered render callback receives a fresh View.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"taskclock/internal/config"
	"taskclock/internal/eventbus"
	"taskclock/internal/notifier"
	"taskclock/internal/observability/debug"
	"taskclock/internal/reports"
	"taskclock/internal/runtime/supervisor"
	"taskclock/internal/storage"
	"taskclock/internal/task"
	"taskclock/internal/task/scheduler"
	"taskclock/internal/task/store"
	"taskclock/internal/timer"
	logx "taskclock/pkg/logx"
)

var (
	ErrNotLoaded = errors.New("app: tasks not loaded")
	ErrClosed    = errors.New("app: closed")
)

// Options carries collaborators supplied by the caller. Zero values pick
// production defaults.
type Options struct {
	Logger logx.Logger
	// Sink receives reschedule notices and digests.
	Sink notifier.Sink
	// Clock drives timers; Now defaults to Clock.Now.
	Clock timer.Clock
	Now   func() time.Time
	// Backend overrides the storage configured in cfg.
	Backend storage.Store
}

type App struct {
	cfg  atomic.Pointer[config.Config]
	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger

	bus     eventbus.Bus
	backend storage.Store
	store   *store.Store
	sched   *scheduler.Scheduler
	timers  *timer.Engine
	notif   *notifier.Service
	reports *reports.Service
	debug   *debug.Service
	sup     *supervisor.Supervisor
	now     func() time.Time

	// mu serializes structural edits (add, remove, toggle, timer actions).
	// Ticks bypass it; they only advance elapsed time from the start instant.
	mu sync.Mutex

	renderMu sync.Mutex
	onRender func(View)

	loaded    atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open loads the config at path (Default() when missing), starts the
// logging service and builds the app.
func Open(path string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(path)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	var logs *logx.Service
	if opts.Logger.IsZero() {
		logs, opts.Logger = logx.New(mapLoggingConfig(cfg))
	}
	a, err := New(cfg, opts)
	if err != nil {
		if logs != nil {
			_ = logs.Close()
		}
		return nil, err
	}
	a.cfgm = cfgm
	a.logs = logs
	cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	return a, nil
}

// New builds the app from cfg. Tasks are not read until Load.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log.IsZero() {
		log = logx.Nop()
	}

	window, err := mapSchedulerWindow(cfg)
	if err != nil {
		return nil, err
	}
	tcfg, err := mapTimerConfig(cfg)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		sc, err := mapStorageConfig(cfg)
		if err != nil {
			return nil, err
		}
		backend, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		log.Debug("storage opened", logx.String("driver", sc.Driver))
	}

	clock := opts.Clock
	if clock == nil {
		clock = timer.SystemClock()
	}
	now := opts.Now
	if now == nil {
		now = clock.Now
	}

	bus := eventbus.New()
	a := &App{
		log:     log.With(logx.String("comp", "app")),
		bus:     bus,
		backend: backend,
		store:   store.New(backend, log.With(logx.String("comp", "store"))),
		sched:   scheduler.New(window),
		notif:   notifier.New(ncfg, opts.Sink, log.With(logx.String("comp", "notifier")), bus),
		now:     now,
	}
	a.cfg.Store(cfg)
	a.timers = timer.New(tcfg, a.store, clock, timer.Hooks{
		OnChange: a.onTimerChange,
		OnTick:   a.onTick,
	}, log.With(logx.String("comp", "timer")))
	return a, nil
}

// Logger returns the app logger.
func (a *App) Logger() logx.Logger { return a.log }

// OnRender registers the render callback. fn may run on ticker goroutines;
// calls are serialized.
func (a *App) OnRender(fn func(View)) {
	a.renderMu.Lock()
	a.onRender = fn
	a.renderMu.Unlock()
}

// SetSink replaces the notification sink.
func (a *App) SetSink(s notifier.Sink) { a.notif.SetSink(s) }

// Load reads the persisted tasks, restarts timers that were running and
// renders. Storage failures degrade to an empty list.
func (a *App) Load(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	a.mu.Lock()
	tasks := a.store.Load(ctx)
	a.loaded.Store(true)
	a.mu.Unlock()

	a.notif.Start(ctx)
	restored := a.timers.Restore()
	a.log.Info("tasks loaded", logx.Int("count", len(tasks)), logx.Int("timers_restored", restored))
	a.render("")
	return nil
}

// Close stops the timers, saves the latest elapsed times, drains pending
// notifications and closes storage. Running timers stay Running on disk and
// are restored by the next Load.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.timers.Close()

		var errs []error
		if a.loaded.Load() {
			if err := a.store.Save(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		a.notif.Stop(ctx)
		if err := a.backend.Close(); err != nil {
			errs = append(errs, err)
		}
		a.log.Debug("app closed")
		if a.logs != nil {
			_ = a.logs.Close()
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func (a *App) ready() error {
	if a.closed.Load() {
		return ErrClosed
	}
	if !a.loaded.Load() {
		return ErrNotLoaded
	}
	return nil
}

// save persists the list; failures are logged and returned.
func (a *App) save(ctx context.Context) error {
	if err := a.store.Save(ctx); err != nil {
		a.log.Error("saving tasks failed", logx.Err(err))
		return err
	}
	return nil
}

func (a *App) render(changed task.ID) {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()
	v := buildView(a.store.List(), a.now(), changed)
	a.bus.Publish(eventbus.Event{Type: eventbus.Render, Time: v.At, TaskID: string(changed)})
	if a.onRender != nil {
		a.onRender(v)
	}
}

func (a *App) onTimerChange(t task.Task, tr timer.Transition) {
	a.bus.Publish(eventbus.Event{Type: eventbus.TimerChanged, TaskID: string(t.ID), Data: tr})
}

func (a *App) onTick(t task.Task) {
	a.bus.Publish(eventbus.Event{Type: eventbus.TimerTick, TaskID: string(t.ID), Data: t.ElapsedTime})
	a.render(t.ID)
}
