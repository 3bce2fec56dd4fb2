package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"taskclock/internal/summary"
	"taskclock/internal/task"
	"taskclock/pkg/timefmt"
)

const (
	shortIDLen = 8
	dueLayout  = "2006-01-02 15:04"
)

func shortID(id task.ID) string {
	s := string(id)
	if len(s) > shortIDLen {
		return s[:shortIDLen]
	}
	return s
}

func status(t task.Task, now time.Time) string {
	switch {
	case t.Completed:
		return "done"
	case t.IsOverdue(now):
		return "overdue"
	default:
		return "open"
	}
}

func writeTasks(w io.Writer, tasks []task.Task, now time.Time, loc *time.Location) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDUE\tPRIORITY\tSTATUS\tTIMER\tELAPSED")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(t.ID),
			t.Title,
			t.Due().In(loc).Format(dueLayout),
			t.Priority,
			status(t, now),
			t.State(),
			timefmt.Elapsed(t.ElapsedTime),
		)
	}
	return tw.Flush()
}

func writeTimer(w io.Writer, t task.Task) {
	fmt.Fprintf(w, "%s %s %s\n", shortID(t.ID), t.State(), timefmt.Elapsed(t.ElapsedTime))
}

func writeSummary(w io.Writer, daily summary.Counts, week summary.Week, all summary.Counts, overdue []task.Task, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Today\t%s\n", daily)
	fmt.Fprintf(tw, "Week %s - %s\t%s\n", week.Start.Format("Mon Jan 2"), week.End.Format("Mon Jan 2"), week.Counts)
	fmt.Fprintf(tw, "All\t%s\n", all)
	fmt.Fprintf(tw, "Overdue\t%d\n", len(overdue))
	for _, t := range overdue {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", shortID(t.ID), t.Title, t.Due().In(loc).Format(dueLayout))
	}
	return tw.Flush()
}
