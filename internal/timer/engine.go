package timer

import (
	"sync"
	"time"

	"taskclock/internal/task"
	"taskclock/internal/task/store"
	logx "taskclock/pkg/logx"
)

type Engine struct {
	mu sync.Mutex

	store    *store.Store
	clock    Clock
	interval time.Duration
	hooks    Hooks
	log      logx.Logger

	tickers map[task.ID]*handle
	gen     uint64
	closed  bool
	wg      sync.WaitGroup
}

func New(cfg Config, st *store.Store, clock Clock, hooks Hooks, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Engine{
		store:    st,
		clock:    clock,
		interval: cfg.TickInterval,
		hooks:    hooks,
		log:      log,
		tickers:  map[task.ID]*handle{},
	}
}

// Start moves an idle timer to Running, resuming from its elapsed time.
// Starting a Running or Paused timer is a no-op and never adds a second ticker.
func (e *Engine) Start(id task.ID) (task.Task, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return task.Task{}, ErrClosed
	}
	changed := false
	now := e.clock.Now().UnixMilli()
	t, err := e.store.Update(id, func(t *task.Task) error {
		if t.State() != task.StateIdle {
			return nil
		}
		start := now - t.ElapsedTime
		t.StartTime = &start
		t.TimerRunning = true
		t.TimerPaused = false
		changed = true
		return nil
	})
	if err != nil {
		e.mu.Unlock()
		return task.Task{}, err
	}
	if t.State() == task.StateRunning {
		// Also covers a Running record without a live ticker (e.g. loaded from disk).
		e.launchLocked(id)
	}
	e.mu.Unlock()

	if changed {
		e.log.Debug("timer started", logx.String("task", string(id)), logx.Int64("elapsed_ms", t.ElapsedTime))
		e.changed(t, TransitionStart)
	}
	return t, nil
}

// Resume moves a Paused timer back to Running. Resuming a Running timer is a
// no-op; an idle timer returns ErrNotRunning.
func (e *Engine) Resume(id task.ID) (task.Task, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return task.Task{}, ErrClosed
	}
	changed := false
	now := e.clock.Now().UnixMilli()
	t, err := e.store.Update(id, func(t *task.Task) error {
		switch t.State() {
		case task.StateIdle:
			return ErrNotRunning
		case task.StateRunning:
			return nil
		}
		start := now - t.ElapsedTime
		t.StartTime = &start
		t.TimerPaused = false
		changed = true
		return nil
	})
	if err != nil {
		e.mu.Unlock()
		return t, err
	}
	e.launchLocked(id)
	e.mu.Unlock()

	if changed {
		e.log.Debug("timer resumed", logx.String("task", string(id)))
		e.changed(t, TransitionResume)
	}
	return t, nil
}

// Pause cancels the tick and freezes elapsed time at its last ticked value.
func (e *Engine) Pause(id task.ID) (task.Task, error) {
	e.mu.Lock()
	e.cancelLocked(id)
	changed := false
	t, err := e.store.Update(id, func(t *task.Task) error {
		switch t.State() {
		case task.StateIdle:
			return ErrNotRunning
		case task.StatePaused:
			return nil
		}
		t.TimerPaused = true
		changed = true
		return nil
	})
	e.mu.Unlock()
	if err != nil {
		return t, err
	}

	if changed {
		e.log.Debug("timer paused", logx.String("task", string(id)), logx.Int64("elapsed_ms", t.ElapsedTime))
		e.changed(t, TransitionPause)
	}
	return t, nil
}

// Stop returns the timer to Idle, keeping the elapsed time.
func (e *Engine) Stop(id task.ID) (task.Task, error) {
	e.mu.Lock()
	e.cancelLocked(id)
	changed := false
	t, err := e.store.Update(id, func(t *task.Task) error {
		if t.State() == task.StateIdle {
			return nil
		}
		t.TimerRunning = false
		t.TimerPaused = false
		changed = true
		return nil
	})
	e.mu.Unlock()
	if err != nil {
		return t, err
	}

	if changed {
		e.log.Debug("timer stopped", logx.String("task", string(id)), logx.Int64("elapsed_ms", t.ElapsedTime))
		e.changed(t, TransitionStop)
	}
	return t, nil
}

// Reset returns the timer to Idle from any state and clears elapsed time.
func (e *Engine) Reset(id task.ID) (task.Task, error) {
	e.mu.Lock()
	e.cancelLocked(id)
	t, err := e.store.Update(id, func(t *task.Task) error {
		t.ElapsedTime = 0
		t.StartTime = nil
		t.TimerRunning = false
		t.TimerPaused = false
		return nil
	})
	e.mu.Unlock()
	if err != nil {
		return t, err
	}

	e.log.Debug("timer reset", logx.String("task", string(id)))
	e.changed(t, TransitionReset)
	return t, nil
}

// Cancel drops the ticker for id without touching the record. Call it before
// removing a task from the store.
func (e *Engine) Cancel(id task.ID) {
	e.mu.Lock()
	e.cancelLocked(id)
	e.mu.Unlock()
}

// Restore starts tickers for tasks that are Running in the store but have no
// live ticker (typically right after a load). Elapsed time is recomputed from
// the persisted start time. It returns the number of timers restored.
func (e *Engine) Restore() int {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0
	}
	var restored []task.Task
	now := e.clock.Now().UnixMilli()
	for _, t := range e.store.List() {
		if t.State() != task.StateRunning {
			continue
		}
		if _, live := e.tickers[t.ID]; live {
			continue
		}
		updated, err := e.store.Update(t.ID, func(t *task.Task) error {
			advance(t, now)
			return nil
		})
		if err != nil {
			continue
		}
		e.launchLocked(t.ID)
		restored = append(restored, updated)
	}
	e.mu.Unlock()

	for _, t := range restored {
		e.log.Info("timer restored", logx.String("task", string(t.ID)), logx.Int64("elapsed_ms", t.ElapsedTime))
		e.changed(t, TransitionRestore)
	}
	return len(restored)
}

// Ticking reports whether id has a live ticker.
func (e *Engine) Ticking(id task.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tickers[id]
	return ok
}

// Active returns the number of live tickers.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tickers)
}

// Close cancels every ticker and waits for the ticker goroutines to exit.
// Records are left as they are, so Running timers resume on the next Restore.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for id := range e.tickers {
		e.cancelLocked(id)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// launchLocked starts a ticker for id unless one is already live.
func (e *Engine) launchLocked(id task.ID) {
	if _, live := e.tickers[id]; live {
		return
	}
	e.gen++
	h := &handle{
		gen:    e.gen,
		ticker: e.clock.NewTicker(e.interval),
		stop:   make(chan struct{}),
	}
	e.tickers[id] = h
	e.wg.Add(1)
	go e.run(id, h)
}

func (e *Engine) cancelLocked(id task.ID) {
	h, ok := e.tickers[id]
	if !ok {
		return
	}
	delete(e.tickers, id)
	close(h.stop)
}

func (e *Engine) run(id task.ID, h *handle) {
	defer e.wg.Done()
	defer h.ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-h.ticker.C():
			if !e.tick(id, h) {
				return
			}
		}
	}
}

// tick recomputes elapsed time. It returns false when the ticker should exit.
func (e *Engine) tick(id task.ID, h *handle) bool {
	e.mu.Lock()
	if cur, ok := e.tickers[id]; !ok || cur.gen != h.gen {
		e.mu.Unlock()
		return false
	}
	now := e.clock.Now().UnixMilli()
	t, err := e.store.Update(id, func(t *task.Task) error {
		if t.State() != task.StateRunning {
			return ErrNotRunning
		}
		advance(t, now)
		return nil
	})
	if err != nil {
		// Task deleted or no longer running behind our back.
		e.cancelLocked(id)
		e.mu.Unlock()
		e.log.Debug("ticker dropped", logx.String("task", string(id)), logx.Err(err))
		return false
	}
	e.mu.Unlock()

	if e.hooks.OnTick != nil {
		e.hooks.OnTick(t)
	}
	return true
}

// advance sets elapsed = now - start, never moving it backwards.
func advance(t *task.Task, now int64) {
	if t.StartTime == nil {
		start := now - t.ElapsedTime
		t.StartTime = &start
	}
	if el := now - *t.StartTime; el > t.ElapsedTime {
		t.ElapsedTime = el
	}
}

func (e *Engine) changed(t task.Task, tr Transition) {
	if e.hooks.OnChange != nil {
		e.hooks.OnChange(t, tr)
	}
}
