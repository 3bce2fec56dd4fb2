package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "taskclock/pkg/logx"
)

//go:embed migrations.sql
var schemaSQL string

const defaultBusyTimeout = 5 * time.Second

// sqliteStore keeps each document as one row of the documents table. Every
// Put bumps the row's revision so concurrent processes can tell writes apart.
type sqliteStore struct {
	db     *sql.DB
	log    logx.Logger
	closed atomic.Bool
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, cfg.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// One connection serializes writers and keeps the pragmas in effect.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	version, err := applySchema(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store ready", logx.String("path", path), logx.Int("schema", version))
	return &sqliteStore{db: db, log: log}, nil
}

// sqliteDSN encodes the connection pragmas as modernc _pragma parameters so
// they apply to every connection the pool opens.
func sqliteDSN(path string, busy time.Duration) string {
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

// applySchema runs the schema steps newer than the database's user_version.
func applySchema(ctx context.Context, db *sql.DB) (int, error) {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	steps := schemaSteps(schemaSQL)
	for i := current; i < len(steps); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return current, err
		}
		if _, err := tx.ExecContext(ctx, steps[i]); err != nil {
			_ = tx.Rollback()
			return current, fmt.Errorf("schema step %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return current, err
		}
		if err := tx.Commit(); err != nil {
			return current, err
		}
		current = i + 1
	}
	return current, nil
}

const stepMarker = "-- +step"

// schemaSteps splits src on lines that consist of the step marker alone.
// Other comment lines are dropped; text before the first marker is ignored.
func schemaSteps(src string) []string {
	var (
		out     []string
		cur     []string
		started bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(strings.Join(cur, "\n")); stmt != "" {
			out = append(out, stmt)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == stepMarker:
			if started {
				flush()
			}
			started = true
		case !started, strings.HasPrefix(trimmed, "--"):
		default:
			cur = append(cur, line)
		}
	}
	if started {
		flush()
	}
	return out
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	key, err := checkKey(key)
	if err != nil {
		return nil, false, err
	}
	var body []byte
	row := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, key)
	switch err := row.Scan(&body); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	return body, true, nil
}

func (s *sqliteStore) Put(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	key, err := checkKey(key)
	if err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	var rev int64
	err = s.db.QueryRowContext(ctx, `
INSERT INTO documents (name, body, revision, written_at) VALUES (?, ?, 1, ?)
ON CONFLICT (name) DO UPDATE SET
	body = excluded.body,
	revision = documents.revision + 1,
	written_at = excluded.written_at
RETURNING revision`, key, value, time.Now().UnixMilli()).Scan(&rev)
	if err != nil {
		return fmt.Errorf("sqlite put %q: %w", key, err)
	}
	s.log.Trace("document written", logx.String("key", key), logx.Int64("revision", rev), logx.Int("bytes", len(value)))
	return nil
}

// revision returns the write counter for key, or 0 when absent.
func (s *sqliteStore) revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM documents WHERE name = ?`, key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

func (s *sqliteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
