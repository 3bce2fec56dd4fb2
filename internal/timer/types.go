package timer

import (
	"errors"
	"time"

	"taskclock/internal/task"
)

// DefaultTickInterval is the nominal tick cadence.
const DefaultTickInterval = time.Second

var (
	ErrNotRunning = errors.New("timer not running")
	ErrClosed     = errors.New("timer engine closed")
)

type Transition string

const (
	TransitionStart   Transition = "start"
	TransitionPause   Transition = "pause"
	TransitionResume  Transition = "resume"
	TransitionStop    Transition = "stop"
	TransitionReset   Transition = "reset"
	TransitionRestore Transition = "restore"
)

// Hooks are invoked outside the engine lock.
//
// OnChange runs after every state transition that changed the record.
// OnTick runs after each tick updated the elapsed time.
type Hooks struct {
	OnChange func(t task.Task, tr Transition)
	OnTick   func(t task.Task)
}

type Config struct {
	TickInterval time.Duration
}

type handle struct {
	gen    uint64
	ticker Ticker
	stop   chan struct{}
}
