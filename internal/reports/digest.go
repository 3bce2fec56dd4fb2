package reports

import (
	"fmt"
	"strings"
	"time"

	"taskclock/internal/summary"
	"taskclock/internal/task"
)

// DailyDigest renders the daily summary line for now's calendar day.
func DailyDigest(tasks []task.Task, now time.Time) string {
	c := summary.Daily(tasks, now)
	return fmt.Sprintf("Daily summary for %s: %d due, %d completed.", now.Format("Mon Jan 2"), c.Total, c.Completed)
}

// WeeklyDigest renders the weekly overview plus overdue titles.
func WeeklyDigest(tasks []task.Task, now time.Time) string {
	w := summary.Weekly(tasks, now)
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly overview %s - %s: %d due, %d completed.",
		w.Start.Format("Mon Jan 2"), w.End.Format("Mon Jan 2"), w.Counts.Total, w.Counts.Completed)
	if late := summary.Overdue(tasks, now); len(late) > 0 {
		titles := make([]string, 0, len(late))
		for _, t := range late {
			titles = append(titles, t.Title)
		}
		fmt.Fprintf(&b, " Overdue: %s.", strings.Join(titles, ", "))
	}
	return b.String()
}
