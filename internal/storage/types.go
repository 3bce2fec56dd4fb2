package storage

import (
	"errors"
	"time"
)

var (
	ErrClosed     = errors.New("storage closed")
	ErrInvalidKey = errors.New("storage key required")
)

// Config configures storage.
//
// Driver values:
//   - "memory" (default when empty)
//   - "file": Path is the document path prefix, e.g. "./data/taskclock.json"
//     stores key "tasks" in "./data/taskclock.tasks.json"
//   - "sqlite": Path is the database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
