package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "taskclock/pkg/logx"
)

// fileStore writes one JSON document per key next to the configured path.
// For Path "./data/taskclock.json" key "tasks" lives in
// "./data/taskclock.tasks.json"; the document it replaced is kept as
// "./data/taskclock.tasks.json.bak" and is read back when the current one
// is missing.
type fileStore struct {
	dir  string
	stem string
	log  logx.Logger

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store dir: %w", err)
	}
	return &fileStore{
		dir:  dir,
		stem: strings.TrimSuffix(name, filepath.Ext(name)),
		log:  log,
	}, nil
}

func (s *fileStore) pathFor(key string) string {
	return filepath.Join(s.dir, s.stem+"."+fileSafe(key)+".json")
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	key, err := checkKey(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	path := s.pathFor(key)
	for _, candidate := range []string{path, path + ".bak"} {
		b, err := os.ReadFile(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if candidate != path {
			s.log.Warn("document missing, using backup", logx.String("key", key), logx.String("path", candidate))
		}
		return b, true, nil
	}
	return nil, false, nil
}

func (s *fileStore) Put(_ context.Context, key string, value []byte) error {
	key, err := checkKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	path := s.pathFor(key)
	if err := replaceFile(path, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.log.Trace("document written", logx.String("key", key), logx.Int("bytes", len(value)))
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// replaceFile writes data to a sibling temp file, moves the current file to
// path+".bak" and renames the temp file into place.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after the rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(path, path+".bak"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(tmpName, path)
}

// fileSafe maps key onto characters that are safe in a file name.
func fileSafe(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if r == '-' || r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
