package notifier

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strconv"
	"time"
)

// Config controls the async notification pipeline. Zero values fall back to
// the defaults in withDefaults.
type Config struct {
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

func (c Config) withDefaults() Config {
	pos := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	pos(&c.Workers, 1)
	pos(&c.QueueSize, 64)
	pos(&c.RatePerSec, 5)
	pos(&c.DedupMaxEntries, 500)
	c.RetryMax = max(c.RetryMax, 0)
	c.DedupWindow = max(c.DedupWindow, 0)
	if c.RetryBase <= 0 {
		c.RetryBase = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
	return c
}

type Kind string

const (
	KindReschedule Kind = "reschedule"
	KindDigest     Kind = "digest"
)

type Notification struct {
	Kind   Kind      `json:"kind"`
	TaskID string    `json:"task_id,omitempty"`
	Title  string    `json:"title,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// dedupKey identifies notifications that say the same thing about the same task.
func (n Notification) dedupKey() string {
	h := fnv.New64a()
	for _, part := range []string{string(n.Kind), n.TaskID, n.Text} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// RescheduleText is the message shown when a task was moved to a free slot.
func RescheduleText(title string) string {
	return fmt.Sprintf("Conflict detected! Rescheduling task \"%s\" to the next available slot.", title)
}

// Sink receives notifications. Deliver may be called from several workers.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

type SinkFunc func(ctx context.Context, n Notification) error

func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// WriterSink writes one line per notification.
func WriterSink(w io.Writer) Sink {
	return SinkFunc(func(_ context.Context, n Notification) error {
		_, err := io.WriteString(w, n.Text+"\n")
		return err
	})
}

// HistoryItem is one delivered notification.
type HistoryItem struct {
	At   time.Time `json:"at"`
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
}

// Event is the Data payload of notifier events on the bus.
type Event struct {
	Kind   Kind      `json:"kind"`
	TaskID string    `json:"task_id,omitempty"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
