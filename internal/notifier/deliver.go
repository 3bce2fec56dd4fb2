package notifier

import (
	"context"
	"math/rand"
	"time"

	logx "taskclock/pkg/logx"
)

const deliverTimeout = 10 * time.Second

func (s *Service) work(ctx context.Context, queue <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-queue:
			if !ok {
				return
			}
			s.deliver(ctx, j)
		}
	}
}

// deliver hands j to the sink, retrying up to cfg.RetryMax times.
func (s *Service) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	cfg, lim, sink := s.cfg, s.limiter, s.sink
	s.mu.Unlock()

	kind := logx.String("kind", string(j.n.Kind))
	if sink == nil {
		s.log.Warn("notification dropped", kind, logx.Err(ErrNoSink))
		s.emit(EventFailed, j.n, j.key, ErrNoSink)
		return
	}

	var err error
	for attempt := 1; ; attempt++ {
		if werr := lim.Wait(ctx); werr != nil {
			return
		}
		err = s.attempt(ctx, sink, j.n)
		if err == nil {
			s.history.add(HistoryItem{At: time.Now(), Kind: j.n.Kind, Text: j.n.Text})
			s.emit(EventSent, j.n, j.key, nil)
			return
		}
		s.log.Debug("notification attempt failed", kind, logx.Int("attempt", attempt), logx.Err(err))
		if attempt > cfg.RetryMax {
			break
		}
		if !sleepCtx(ctx, retryDelay(cfg, attempt)) {
			return
		}
	}
	s.log.Warn("notification failed", kind, logx.Err(err))
	s.emit(EventFailed, j.n, j.key, err)
}

func (s *Service) attempt(ctx context.Context, sink Sink, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	return sink.Deliver(ctx, n)
}

// retryDelay doubles RetryBase per attempt up to RetryMaxDelay and applies
// +/-30% jitter, never exceeding RetryMaxDelay.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + 0.6*rand.Float64()))
	return min(d, cfg.RetryMaxDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
