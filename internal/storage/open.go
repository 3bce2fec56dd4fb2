package storage

import (
	"context"
	"fmt"
	"strings"

	logx "taskclock/pkg/logx"
)

// Store holds serialized documents by key. A Put replaces the whole document.
type Store interface {
	// Get returns the document stored under key; ok is false when there is none.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

type opener func(Config, logx.Logger) (Store, error)

var drivers = map[string]opener{
	"":        openMemory,
	"memory":  openMemory,
	"mem":     openMemory,
	"file":    openFile,
	"sqlite":  openSQLite,
	"sqlite3": openSQLite,
}

// Open returns the Store selected by cfg.Driver.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Driver))
	open, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q", name)
	}
	return open(cfg, log.With(logx.String("driver", driverLabel(name))))
}

func openMemory(Config, logx.Logger) (Store, error) { return NewMemory(), nil }

func driverLabel(name string) string {
	if name == "" {
		return "memory"
	}
	return name
}

func checkKey(key string) (string, error) {
	if key = strings.TrimSpace(key); key == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}
