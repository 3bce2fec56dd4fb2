// Package supervisor runs the long-lived goroutines of a taskclock process
// (report scheduler, config watcher, notifier workers, debug server) under
// one cancellable context.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	logx "taskclock/pkg/logx"
)

// Supervisor owns a context and the goroutines started under it. A panic in
// a goroutine is recovered and reported as that goroutine's error.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	cancelOnErr bool

	started atomic.Uint64
	running atomic.Int64
	wg      sync.WaitGroup

	errMu sync.Mutex
	err   error

	waitOnce sync.Once
	done     chan struct{}
}

type Option func(*Supervisor)

// Counters is a point-in-time view for status output.
type Counters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
}

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError makes the first goroutine error cancel every sibling.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	s := &Supervisor{done: make(chan struct{}), log: logx.Nop()}
	s.ctx, s.cancel = context.WithCancel(parent)
	for _, opt := range opts {
		opt(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the shared context and returns immediately.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first error a goroutine returned, if any.
func (s *Supervisor) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Supervisor) Counters() Counters {
	return Counters{Active: s.running.Load(), Started: s.started.Load()}
}

// Go runs fn once in its own goroutine.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.started.Add(1)
	s.running.Add(1)
	s.wg.Add(1)
	go func() {
		defer func() {
			s.running.Add(-1)
			s.wg.Done()
		}()
		log := s.log.With(logx.String("goroutine", name))
		log.Debug("goroutine started")
		if err := s.call(log, fn); err != nil && !errors.Is(err, context.Canceled) {
			s.record(fmt.Errorf("%s: %w", name, err))
		}
		log.Debug("goroutine stopped")
	}()
}

// call runs fn, converting a panic into an error.
func (s *Supervisor) call(log logx.Logger, fn func(ctx context.Context) error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Error("goroutine panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		err = fmt.Errorf("panic: %v", r)
	}()
	return fn(s.ctx)
}

func (s *Supervisor) record(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	if s.cancelOnErr {
		s.cancel()
	}
}

// Stop cancels the context and waits for the goroutines to return.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every goroutine has returned, then reports Err. It
// returns ctx.Err() if ctx ends first.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.waitOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.done)
		}()
	})
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
