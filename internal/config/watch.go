package config

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "taskclock/pkg/logx"
)

const (
	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second
)

const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Watch reloads the config whenever the file changes, until ctx ends. The
// parent directory is watched so editors that save by rename are seen. If
// the watcher breaks it is recreated after a jittered backoff.
func (m *ConfigManager) Watch(ctx context.Context) error {
	d := newDebouncer(m.debounce, func() { m.reload(ctx) })
	defer d.stop()

	backoff := watchBackoffMin
	for ctx.Err() == nil {
		err := m.watchOnce(ctx, d.trigger, func() { backoff = watchBackoffMin })
		if ctx.Err() != nil {
			return nil
		}
		m.log.Warn("config watcher failed; retrying", logx.Err(err), logx.Duration("backoff", backoff))
		if !sleepCtx(ctx, jitter(backoff)) {
			return nil
		}
		backoff = min(backoff*2, watchBackoffMax)
	}
	return nil
}

// watchOnce runs one fsnotify watcher until ctx ends or the watcher breaks.
// started is called once the directory is being watched.
func (m *ConfigManager) watchOnce(ctx context.Context, changed, started func()) error {
	dir, file := filepath.Dir(m.path), filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	started()
	m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			if filepath.Base(ev.Name) == file && ev.Op&reloadOps != 0 {
				changed()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; the file may have changed.
				changed()
				continue
			}
			m.log.Warn("config watch error", logx.Err(err))
		}
	}
}

// debouncer collapses bursts of triggers into one call after a quiet period.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	fn    func()
	t     *time.Timer
}

func newDebouncer(delay time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
	d.t = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
}

func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
