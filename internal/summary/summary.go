// Package summary derives aggregate counts from a task list.
//
// Every function is pure: results are recomputed from the tasks passed in and
// nothing is cached between calls.
package summary

import (
	"fmt"
	"time"

	"taskclock/internal/task"
)

// Counts pairs the number of matching tasks with how many of them are done.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

func (c Counts) String() string {
	return fmt.Sprintf("Completed: %d / Total: %d", c.Completed, c.Total)
}

// Week is the Sunday-start calendar week containing a reference instant.
// Start and End are both inclusive.
type Week struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Counts Counts    `json:"counts"`
}

// Contains reports whether ms (unix milli) falls inside the week.
func (w Week) Contains(ms int64) bool {
	return ms >= w.Start.UnixMilli() && ms <= w.End.UnixMilli()
}

// Daily counts tasks due on now's calendar day in now's location.
func Daily(tasks []task.Task, now time.Time) Counts {
	y, m, d := now.Date()
	var c Counts
	for _, t := range tasks {
		ty, tm, td := time.UnixMilli(t.DueDate).In(now.Location()).Date()
		if ty != y || tm != m || td != d {
			continue
		}
		add(&c, t)
	}
	return c
}

// WeekBounds returns Sunday 00:00:00.000 and Saturday 23:59:59.999 of the
// week containing now, in now's location.
func WeekBounds(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	start = midnight.AddDate(0, 0, -int(midnight.Weekday()))
	end = start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return start, end
}

// Weekly counts tasks due within the week containing now.
func Weekly(tasks []task.Task, now time.Time) Week {
	start, end := WeekBounds(now)
	w := Week{Start: start, End: end}
	for _, t := range tasks {
		if w.Contains(t.DueDate) {
			add(&w.Counts, t)
		}
	}
	return w
}

// Completion counts every task.
func Completion(tasks []task.Task) Counts {
	var c Counts
	for _, t := range tasks {
		add(&c, t)
	}
	return c
}

// Overdue returns the open tasks whose due date has passed, in list order.
func Overdue(tasks []task.Task, now time.Time) []task.Task {
	out := make([]task.Task, 0)
	for _, t := range tasks {
		if t.IsOverdue(now) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func add(c *Counts, t task.Task) {
	c.Total++
	if t.Completed {
		c.Completed++
	}
}
