// Package store holds the ordered task list and persists it.
//
// Tasks live in a slice (display order) with an id -> position index that is
// rebuilt after every structural change, so callers never hold positions
// across mutations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"taskclock/internal/storage"
	"taskclock/internal/task"
	logx "taskclock/pkg/logx"
)

// Key is the fixed storage key holding the serialized task list.
const Key = "tasks"

var (
	ErrNotFound  = errors.New("task not found")
	ErrDuplicate = errors.New("task id already exists")
)

type Store struct {
	mu    sync.RWMutex
	tasks []task.Task
	index map[task.ID]int

	backend storage.Store
	log     logx.Logger
}

// New returns an empty store persisting to backend. A nil backend keeps the
// list in memory only.
func New(backend storage.Store, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	if backend == nil {
		backend = storage.NewMemory()
	}
	return &Store{
		tasks:   []task.Task{},
		index:   map[task.ID]int{},
		backend: backend,
		log:     log,
	}
}

// Load replaces the in-memory list with the persisted one and returns a copy.
// Absent or malformed data yields an empty list; Load never fails.
func (s *Store) Load(ctx context.Context) []task.Task {
	tasks := s.read(ctx)

	s.mu.Lock()
	s.tasks = tasks
	s.reindexLocked()
	out := task.CloneAll(s.tasks)
	s.mu.Unlock()

	s.log.Debug("tasks loaded", logx.Int("count", len(out)))
	return out
}

func (s *Store) read(ctx context.Context) []task.Task {
	b, ok, err := s.backend.Get(ctx, Key)
	if err != nil {
		s.log.Warn("task storage read failed; starting empty", logx.Err(err))
		return []task.Task{}
	}
	if !ok || len(strings.TrimSpace(string(b))) == 0 {
		return []task.Task{}
	}
	var tasks []task.Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		s.log.Warn("task storage malformed; starting empty", logx.Err(err), logx.Int("bytes", len(b)))
		return []task.Task{}
	}

	seen := make(map[task.ID]struct{}, len(tasks))
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		t.Normalize()
		if _, dup := seen[t.ID]; dup {
			t.ID = task.NewID()
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Save writes the full list, overwriting the previous state.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	b, err := json.Marshal(s.tasks)
	n := len(s.tasks)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := s.backend.Put(ctx, Key, b); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	s.log.Trace("tasks saved", logx.Int("count", n))
	return nil
}

func (s *Store) reindexLocked() {
	if s.tasks == nil {
		s.tasks = []task.Task{}
	}
	s.index = make(map[task.ID]int, len(s.tasks))
	for i := range s.tasks {
		s.index[s.tasks[i].ID] = i
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// List returns a copy of the tasks in display order.
func (s *Store) List() []task.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return task.CloneAll(s.tasks)
}

func (s *Store) Get(id task.ID) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.tasks[i].Clone(), nil
}

// Position returns the current display position of id.
func (s *Store) Position(id task.ID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	return i, ok
}

// Mutate computes a new ordered list from the current one under the store
// lock, so no Update (such as a timer tick) can land between the read and
// the write. fn gets a copy; if it fails or returns an invalid list the
// store is left untouched.
func (s *Store) Mutate(fn func(cur []task.Task) ([]task.Task, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(task.CloneAll(s.tasks))
	if err != nil {
		return err
	}
	next = task.CloneAll(next)
	if err := checkIDs(next); err != nil {
		return err
	}
	s.tasks = next
	s.reindexLocked()
	return nil
}

func checkIDs(tasks []task.Task) error {
	seen := make(map[task.ID]struct{}, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("%w: empty id", ErrNotFound)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicate, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// Remove deletes id and returns the removed task.
func (s *Store) Remove(id task.ID) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.reindexLocked()
	return removed, nil
}

// ToggleCompleted flips the completion flag and returns the updated task.
func (s *Store) ToggleCompleted(id task.ID) (task.Task, error) {
	return s.Update(id, func(t *task.Task) error {
		t.Completed = !t.Completed
		return nil
	})
}

// Update applies fn to the stored task under the store lock. The ID cannot
// be changed. If fn returns an error the task is left untouched.
func (s *Store) Update(id task.ID, fn func(t *task.Task) error) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return task.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cur := s.tasks[i].Clone()
	if err := fn(&cur); err != nil {
		return s.tasks[i].Clone(), err
	}
	cur.ID = id
	s.tasks[i] = cur
	return cur.Clone(), nil
}

// Search returns tasks whose title or description contains term,
// case-insensitively, in display order. An empty term matches everything.
func (s *Store) Search(term string) []task.Task {
	return Filter(s.List(), term)
}

// Filter is the pure form of Search.
func Filter(tasks []task.Task, term string) []task.Task {
	needle := strings.ToLower(term)
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if needle == "" ||
			strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, t)
		}
	}
	return out
}
