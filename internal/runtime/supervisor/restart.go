package supervisor

import (
	"context"
	"errors"
	"time"

	logx "taskclock/pkg/logx"
)

// A run that stays up this long resets the restart backoff.
const healthyRun = 30 * time.Second

type restartPolicy struct {
	minBackoff  time.Duration
	maxBackoff  time.Duration
	maxRestarts int // 0 means no limit
}

// RestartOption configures GoRestart.
type RestartOption func(*restartPolicy)

// WithRestartBackoff bounds the doubling delay between restarts.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.minBackoff = min
		}
		if max > 0 {
			p.maxBackoff = max
		}
	}
}

// WithMaxRestarts gives up after n restarts. The first run does not count.
func WithMaxRestarts(n int) RestartOption {
	return func(p *restartPolicy) { p.maxRestarts = n }
}

// GoRestart runs fn, running it again after an error or panic until the
// context ends or fn returns nil.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{minBackoff: 250 * time.Millisecond, maxBackoff: 30 * time.Second}
	for _, opt := range opts {
		opt(&p)
	}
	p.maxBackoff = max(p.maxBackoff, p.minBackoff)

	log := s.log.With(logx.String("goroutine", name))
	s.Go(name+".restart", func(ctx context.Context) error {
		delay := p.minBackoff
		for restarts := 0; ; restarts++ {
			began := time.Now()
			err := s.call(log, fn)
			if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if p.maxRestarts > 0 && restarts >= p.maxRestarts {
				log.Error("goroutine gave up", logx.Int("restarts", restarts), logx.Err(err))
				return err
			}
			if time.Since(began) >= healthyRun {
				delay = p.minBackoff
			}
			log.Warn("goroutine restarting", logx.Duration("backoff", delay), logx.Err(err))
			if !pause(ctx, delay) {
				return nil
			}
			delay = min(delay*2, p.maxBackoff)
		}
	})
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
