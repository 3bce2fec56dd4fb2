package app

import (
	"time"

	"taskclock/internal/notifier"
	"taskclock/internal/runtime/supervisor"
	"taskclock/internal/summary"
	"taskclock/internal/task"
)

// View is the render payload handed to the view layer after each change.
type View struct {
	At         time.Time
	Tasks      []task.Task
	Daily      summary.Counts
	Weekly     summary.Week
	Completion summary.Counts
	Overdue    []task.ID
	// Changed is the task that triggered the render, empty for list-wide changes.
	Changed task.ID
}

// IsOverdue reports whether id is in the overdue set.
func (v View) IsOverdue(id task.ID) bool {
	for _, o := range v.Overdue {
		if o == id {
			return true
		}
	}
	return false
}

func buildView(tasks []task.Task, now time.Time, changed task.ID) View {
	late := summary.Overdue(tasks, now)
	ids := make([]task.ID, 0, len(late))
	for _, t := range late {
		ids = append(ids, t.ID)
	}
	return View{
		At:         now,
		Tasks:      tasks,
		Daily:      summary.Daily(tasks, now),
		Weekly:     summary.Weekly(tasks, now),
		Completion: summary.Completion(tasks),
		Overdue:    ids,
		Changed:    changed,
	}
}

// Status is the snapshot served on the debug /status endpoint.
type Status struct {
	At         time.Time      `json:"at"`
	Tasks      int            `json:"tasks"`
	Running    int            `json:"running"`
	Paused     int            `json:"paused"`
	Overdue    int            `json:"overdue"`
	Daily      summary.Counts `json:"daily"`
	Weekly     summary.Week   `json:"weekly"`
	Completion summary.Counts `json:"completion"`
	// Notifications holds the most recent delivered notices, oldest first.
	Notifications []notifier.HistoryItem `json:"notifications"`
	// Goroutines is set in serve mode only.
	Goroutines *supervisor.Counters `json:"goroutines,omitempty"`
}

const statusNotifications = 10

func buildStatus(v View) Status {
	st := Status{
		At:         v.At,
		Tasks:      len(v.Tasks),
		Overdue:    len(v.Overdue),
		Daily:      v.Daily,
		Weekly:     v.Weekly,
		Completion: v.Completion,
	}
	for _, t := range v.Tasks {
		switch t.State() {
		case task.StateRunning:
			st.Running++
		case task.StatePaused:
			st.Paused++
		}
	}
	return st
}
