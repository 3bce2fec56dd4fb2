package app

import (
	"context"

	"taskclock/internal/eventbus"
	"taskclock/internal/notifier"
	"taskclock/internal/summary"
	"taskclock/internal/task"
	"taskclock/internal/task/scheduler"
	logx "taskclock/pkg/logx"
)

// AddResult reports where a new task landed.
type AddResult struct {
	Task     task.Task
	Conflict *scheduler.Conflict // nil when the requested due date was kept
	Notice   string              // reschedule message, empty otherwise
}

func (r AddResult) Rescheduled() bool { return r.Conflict != nil }

// AddTask validates f, resolves a due date conflict and inserts the task in
// due date order. Invalid input returns task.ErrInvalidInput and creates
// nothing. A save failure is returned after the in-memory insert.
func (a *App) AddTask(ctx context.Context, f task.Fields) (AddResult, error) {
	if err := a.ready(); err != nil {
		return AddResult{}, err
	}
	t, err := task.New(f)
	if err != nil {
		return AddResult{}, err
	}

	// The conflict check and the insert run under the store lock so a timer
	// tick cannot be overwritten by a stale copy of the list.
	var res scheduler.Result
	a.mu.Lock()
	err = a.store.Mutate(func(cur []task.Task) ([]task.Task, error) {
		var next []task.Task
		next, res = a.sched.Insert(cur, t)
		return next, nil
	})
	a.mu.Unlock()
	if err != nil {
		return AddResult{}, err
	}

	out := AddResult{Task: res.Task, Conflict: res.Conflict}
	a.bus.Publish(eventbus.Event{Type: eventbus.TaskAdded, TaskID: string(t.ID)})
	if res.Rescheduled() {
		out.Notice = notifier.RescheduleText(res.Task.Title)
		a.log.Info("task rescheduled",
			logx.String("task", string(t.ID)),
			logx.String("conflict_with", string(res.Conflict.With.ID)),
			logx.Int64("requested", res.Conflict.Original),
			logx.Int64("assigned", res.Conflict.Rescheduled),
		)
		a.bus.Publish(eventbus.Event{Type: eventbus.TaskRescheduled, TaskID: string(t.ID), Data: *res.Conflict})
		n := notifier.Notification{Kind: notifier.KindReschedule, TaskID: string(t.ID), Title: res.Task.Title, Text: out.Notice}
		if err := a.notif.Notify(ctx, n); err != nil {
			a.log.Warn("reschedule notice not queued", logx.String("task", string(t.ID)), logx.Err(err))
		}
	}

	err = a.save(ctx)
	a.render(t.ID)
	return out, err
}

// EditTask removes id and returns its fields so the caller can prefill the
// add form. Re-adding goes through AddTask and conflict resolution again.
func (a *App) EditTask(ctx context.Context, id task.ID) (task.Fields, error) {
	removed, err := a.remove(ctx, id)
	if err != nil && removed.ID == "" {
		return task.Fields{}, err
	}
	return task.Prefill(removed), err
}

// DeleteTask cancels the task's timer and removes it.
func (a *App) DeleteTask(ctx context.Context, id task.ID) error {
	_, err := a.remove(ctx, id)
	return err
}

func (a *App) remove(ctx context.Context, id task.ID) (task.Task, error) {
	if err := a.ready(); err != nil {
		return task.Task{}, err
	}
	a.mu.Lock()
	a.timers.Cancel(id)
	removed, err := a.store.Remove(id)
	a.mu.Unlock()
	if err != nil {
		return task.Task{}, err
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TaskRemoved, TaskID: string(id)})
	err = a.save(ctx)
	a.render("")
	return removed, err
}

// ToggleComplete flips the completion flag. The timer is left as it is.
func (a *App) ToggleComplete(ctx context.Context, id task.ID) (task.Task, error) {
	if err := a.ready(); err != nil {
		return task.Task{}, err
	}
	a.mu.Lock()
	t, err := a.store.ToggleCompleted(id)
	a.mu.Unlock()
	if err != nil {
		return task.Task{}, err
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TaskCompleted, TaskID: string(id), Data: t.Completed})
	err = a.save(ctx)
	a.render(id)
	return t, err
}

func (a *App) StartTimer(ctx context.Context, id task.ID) (task.Task, error) {
	return a.timerOp(ctx, id, a.timers.Start)
}

func (a *App) PauseTimer(ctx context.Context, id task.ID) (task.Task, error) {
	return a.timerOp(ctx, id, a.timers.Pause)
}

func (a *App) ResumeTimer(ctx context.Context, id task.ID) (task.Task, error) {
	return a.timerOp(ctx, id, a.timers.Resume)
}

func (a *App) StopTimer(ctx context.Context, id task.ID) (task.Task, error) {
	return a.timerOp(ctx, id, a.timers.Stop)
}

func (a *App) ResetTimer(ctx context.Context, id task.ID) (task.Task, error) {
	return a.timerOp(ctx, id, a.timers.Reset)
}

// timerOp runs a timer transition. On timer.ErrNotRunning the unchanged
// task is returned with the error.
func (a *App) timerOp(ctx context.Context, id task.ID, op func(task.ID) (task.Task, error)) (task.Task, error) {
	if err := a.ready(); err != nil {
		return task.Task{}, err
	}
	a.mu.Lock()
	t, err := op(id)
	a.mu.Unlock()
	if err != nil {
		return t, err
	}
	err = a.save(ctx)
	a.render(id)
	return t, err
}

// Tasks returns the list in display (due date) order.
func (a *App) Tasks() []task.Task { return a.store.List() }

func (a *App) Task(id task.ID) (task.Task, error) { return a.store.Get(id) }

// Search filters by case-insensitive substring over title and description.
func (a *App) Search(term string) []task.Task { return a.store.Search(term) }

// DailySummary counts tasks due today.
func (a *App) DailySummary() summary.Counts { return summary.Daily(a.store.List(), a.now()) }

// WeeklyOverview counts tasks due in the current Sunday-start week.
func (a *App) WeeklyOverview() summary.Week { return summary.Weekly(a.store.List(), a.now()) }

// Completion counts all tasks and how many are completed.
func (a *App) Completion() summary.Counts { return summary.Completion(a.store.List()) }

// Overdue lists open tasks past their due date.
func (a *App) Overdue() []task.Task { return summary.Overdue(a.store.List(), a.now()) }

// View builds the current render payload without invoking the callback.
func (a *App) View() View { return buildView(a.store.List(), a.now(), "") }

// Status summarizes the list and timer states.
func (a *App) Status() Status {
	st := buildStatus(a.View())
	recent := a.notif.Snapshot()
	st.Notifications = recent[max(0, len(recent)-statusNotifications):]
	if a.sup != nil {
		c := a.sup.Counters()
		st.Goroutines = &c
	}
	return st
}
