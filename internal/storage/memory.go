package storage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

// NewMemory returns a process-local store. Values are copied on the way in
// and out.
func NewMemory() Store {
	return &memoryStore{data: map[string][]byte{}}
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	key, err := checkKey(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *memoryStore) Put(ctx context.Context, key string, value []byte) error {
	_ = ctx
	key, err := checkKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
