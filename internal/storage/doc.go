// Package storage persists the task list as whole documents keyed by name.
// The last Put for a key wins.
//
// Drivers:
//   - "memory": process-local, used by tests
//   - "file":   one JSON file per key plus a .bak of the previous write
//   - "sqlite": a documents table with a per-key revision counter
package storage
