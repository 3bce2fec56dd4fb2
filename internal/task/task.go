package task

import (
	"time"

	"github.com/google/uuid"
)

type ID string

// NewID returns a fresh random identifier.
func NewID() ID { return ID(uuid.NewString()) }

// State is the timer state derived from the TimerRunning/TimerPaused flags.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Task is the persisted record. The JSON shape is the storage format.
type Task struct {
	ID           ID       `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	DueDate      int64    `json:"dueDate"` // unix milli
	Priority     Priority `json:"priority"`
	Completed    bool     `json:"completed"`
	TimerRunning bool     `json:"timerRunning"`
	TimerPaused  bool     `json:"timerPaused"`
	ElapsedTime  int64    `json:"elapsedTime"` // milliseconds
	StartTime    *int64   `json:"startTime"`   // unix milli, nil when never started or reset
}

// New builds a task from validated fields with a fresh ID and an idle timer.
func New(f Fields) (Task, error) {
	f, err := f.Validate()
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:          NewID(),
		Title:       f.Title,
		Description: f.Description,
		DueDate:     f.DueDate.UnixMilli(),
		Priority:    f.Priority,
	}, nil
}

func (t Task) State() State {
	switch {
	case t.TimerRunning && t.TimerPaused:
		return StatePaused
	case t.TimerRunning:
		return StateRunning
	default:
		return StateIdle
	}
}

func (t Task) Due() time.Time { return time.UnixMilli(t.DueDate) }

// IsOverdue reports whether the task is past due and still open.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.Completed && t.DueDate < now.UnixMilli()
}

// Elapsed returns the elapsed timer value as a duration.
func (t Task) Elapsed() time.Duration { return time.Duration(t.ElapsedTime) * time.Millisecond }

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.StartTime != nil {
		v := *t.StartTime
		t.StartTime = &v
	}
	return t
}

// Normalize repairs persisted records so the invariants hold:
// a missing ID is assigned, elapsed time is never negative, paused implies
// running, and an unknown priority falls back to the default.
func (t *Task) Normalize() {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.ElapsedTime < 0 {
		t.ElapsedTime = 0
	}
	if t.TimerPaused && !t.TimerRunning {
		t.TimerPaused = false
	}
	if !t.Priority.Valid() {
		t.Priority = DefaultPriority
	}
	if t.TimerRunning && t.StartTime == nil {
		v := time.Now().UnixMilli() - t.ElapsedTime
		t.StartTime = &v
	}
}

// Prefill returns the add-form values for t, used by the edit flow.
func Prefill(t Task) Fields {
	return Fields{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.Due(),
		Priority:    t.Priority,
	}
}

// CloneAll copies a slice of tasks.
func CloneAll(in []Task) []Task {
	out := make([]Task, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
