// Package timer runs the per-task stopwatch.
//
// States are derived from the task flags: Idle, Running and Paused (a sub-state
// of Running). Every Running task owns exactly one ticker goroutine; leaving
// Running (pause, stop, reset, delete) always cancels it before the record
// changes, and a generation check drops ticks from a cancelled ticker that were
// already in flight.
package timer
