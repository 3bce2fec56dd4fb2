package notifier

import "sync"

// historyRing keeps the last size delivered notifications.
type historyRing struct {
	mu   sync.Mutex
	buf  []HistoryItem
	next int
	full bool
}

func newHistoryRing(size int) *historyRing {
	return &historyRing{buf: make([]HistoryItem, size)}
}

func (r *historyRing) add(it HistoryItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = it
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// items returns the entries oldest first.
func (r *historyRing) items() []HistoryItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]HistoryItem(nil), r.buf[:r.next]...)
	}
	out := make([]HistoryItem, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
