package scheduler

import (
	"sort"
	"time"

	"taskclock/internal/task"
)

// DefaultWindow is the collision window after an existing due date.
const DefaultWindow = time.Hour

// Conflict describes a reschedule performed by Insert.
type Conflict struct {
	With        task.Task // the existing task that caused the move
	Original    int64     // requested due date, unix milli
	Rescheduled int64     // assigned due date, unix milli
}

// Result is the outcome of Insert.
type Result struct {
	Task     task.Task // the task as inserted (possibly rescheduled)
	Conflict *Conflict // nil when the requested due date was kept
}

func (r Result) Rescheduled() bool { return r.Conflict != nil }

type Scheduler struct {
	window time.Duration
}

// New returns a scheduler with the given window; window <= 0 means DefaultWindow.
func New(window time.Duration) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Scheduler{window: window}
}

func (s *Scheduler) Window() time.Duration { return s.window }

// FindConflict returns the first task in existing (list order, not nearest)
// whose window contains dueDate.
func (s *Scheduler) FindConflict(existing []task.Task, dueDate int64) (task.Task, bool) {
	w := s.window.Milliseconds()
	for _, e := range existing {
		if dueDate >= e.DueDate && dueDate < e.DueDate+w {
			return e, true
		}
	}
	return task.Task{}, false
}

// Insert resolves a collision for t (single pass), then returns a new slice
// holding existing plus t sorted ascending by due date. existing is not
// modified. Tasks with equal due dates keep their relative order, with t
// placed after them.
func (s *Scheduler) Insert(existing []task.Task, t task.Task) ([]task.Task, Result) {
	res := Result{}
	if e, ok := s.FindConflict(existing, t.DueDate); ok {
		orig := t.DueDate
		t.DueDate = e.DueDate + s.window.Milliseconds()
		res.Conflict = &Conflict{With: e.Clone(), Original: orig, Rescheduled: t.DueDate}
	}
	res.Task = t.Clone()

	out := make([]task.Task, 0, len(existing)+1)
	out = append(out, task.CloneAll(existing)...)
	out = append(out, t.Clone())
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate < out[j].DueDate })
	return out, res
}
