package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"taskclock/internal/eventbus"
	rtsup "taskclock/internal/runtime/supervisor"
	logx "taskclock/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
	ErrNoSink    = errors.New("notifier has no sink")
)

// Bus event types.
const (
	EventQueued  = "notifier.queued"
	EventDeduped = "notifier.deduped"
	EventDropped = "notifier.dropped"
	EventSent    = "notifier.sent"
	EventFailed  = "notifier.failed"
)

const historySize = 100

type job struct {
	n   Notification
	key string
}

// pipeline is one Start..Stop lifetime of the worker pool.
type pipeline struct {
	queue    chan job
	sup      *rtsup.Supervisor
	inflight sync.WaitGroup // Notify calls that may still send on queue
	drained  chan struct{}
	closing  bool
}

// Service queues notifications and delivers them from a worker pool with
// rate limiting, retries and duplicate suppression. It is safe for
// concurrent use.
type Service struct {
	log logx.Logger
	bus eventbus.Bus

	mu      sync.Mutex
	cfg     Config
	sink    Sink
	limiter *rate.Limiter
	p       *pipeline

	dedup   *dedupCache
	history *historyRing
}

func New(cfg Config, sink Sink, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		log:     log,
		bus:     bus,
		cfg:     cfg,
		sink:    sink,
		limiter: newLimiter(cfg),
		dedup:   newDedupCache(cfg.DedupMaxEntries),
		history: newHistoryRing(historySize),
	}
}

// Burst equals the per-second rate so a handful of reschedules from one add
// go out without waiting.
func newLimiter(cfg Config) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// SetSink swaps the delivery target. Queued notifications go to the new sink.
func (s *Service) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Apply installs new limits. Worker and queue sizes take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.limiter = newLimiter(cfg)
	s.dedup.resize(cfg.DedupMaxEntries)
}

// Start launches the workers. Calling it on a running service does nothing;
// calling it while a Stop is draining waits for the drain first.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		s.mu.Lock()
		p := s.p
		if p == nil {
			break
		}
		if !p.closing {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-p.drained:
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	p := &pipeline{
		queue:   make(chan job, s.cfg.QueueSize),
		sup:     rtsup.New(ctx, rtsup.WithLogger(s.log)),
		drained: make(chan struct{}),
	}
	s.p = p
	for i := 0; i < s.cfg.Workers; i++ {
		p.sup.GoRestart(fmt.Sprintf("notifier.worker.%d", i), func(c context.Context) error {
			s.work(c, p.queue)
			return nil
		})
	}
	s.log.Debug("notifier started", logx.Int("workers", s.cfg.Workers), logx.Int("queue", s.cfg.QueueSize))
}

// Stop refuses new notifications and drains the queue. If ctx ends first the
// workers are cancelled and the rest of the queue is discarded.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	p := s.p
	if p == nil {
		s.mu.Unlock()
		return
	}
	first := !p.closing
	p.closing = true
	s.mu.Unlock()

	if first {
		go s.drain(p)
	}
	select {
	case <-p.drained:
	case <-ctx.Done():
		p.sup.Cancel()
		<-p.drained
	}
}

func (s *Service) drain(p *pipeline) {
	p.inflight.Wait()
	close(p.queue)
	_ = p.sup.Wait(context.Background())

	s.mu.Lock()
	if s.p == p {
		s.p = nil
	}
	s.mu.Unlock()
	close(p.drained)
	s.log.Debug("notifier drained")
}

// Notify enqueues n. A duplicate of a notification accepted within the dedup
// window is dropped without error.
func (s *Service) Notify(ctx context.Context, n Notification) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}

	s.mu.Lock()
	p := s.p
	if p == nil || p.closing {
		s.mu.Unlock()
		return ErrStopped
	}
	window := s.cfg.DedupWindow
	p.inflight.Add(1)
	s.mu.Unlock()
	defer p.inflight.Done()

	key := n.dedupKey()
	if window > 0 && !s.dedup.admit(key, n.At, window) {
		s.emit(EventDeduped, n, key, nil)
		return nil
	}

	select {
	case p.queue <- job{n: n, key: key}:
		s.emit(EventQueued, n, key, nil)
		return nil
	default:
		s.emit(EventDropped, n, key, ErrQueueFull)
		return ErrQueueFull
	}
}

// Snapshot returns recently delivered notifications, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	return s.history.items()
}

func (s *Service) emit(typ string, n Notification, key string, err error) {
	if s.bus == nil {
		return
	}
	ev := Event{Kind: n.Kind, TaskID: n.TaskID, Key: key, At: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, TaskID: n.TaskID, Data: ev})
}
