package notifier

import (
	"container/list"
	"sync"
	"time"
)

// dedupCache remembers recently accepted notification keys until their
// window expires. Entries are kept in acceptance order so expiry and the
// size cap both trim from the front.
type dedupCache struct {
	mu    sync.Mutex
	max   int
	order *list.List // of *dedupEntry, oldest first
	byKey map[string]*list.Element
}

type dedupEntry struct {
	key   string
	until time.Time
}

func newDedupCache(max int) *dedupCache {
	return &dedupCache{max: max, order: list.New(), byKey: map[string]*list.Element{}}
}

// admit reports whether key may be sent at now, recording it for window if so.
func (c *dedupCache) admit(key string, now time.Time, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expire(now)
	if _, seen := c.byKey[key]; seen {
		return false
	}
	c.byKey[key] = c.order.PushBack(&dedupEntry{key: key, until: now.Add(window)})
	c.trim()
	return true
}

func (c *dedupCache) resize(max int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.max = max
	c.trim()
}

func (c *dedupCache) expire(now time.Time) {
	for e := c.order.Front(); e != nil; e = c.order.Front() {
		ent := e.Value.(*dedupEntry)
		if now.Before(ent.until) {
			return
		}
		c.drop(e)
	}
}

func (c *dedupCache) trim() {
	for c.max > 0 && c.order.Len() > c.max {
		c.drop(c.order.Front())
	}
}

func (c *dedupCache) drop(e *list.Element) {
	delete(c.byKey, e.Value.(*dedupEntry).key)
	c.order.Remove(e)
}

func (c *dedupCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
