package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskclock/internal/app"
	"taskclock/internal/task"
)

// fieldFlags binds the add form inputs.
type fieldFlags struct {
	title       string
	description string
	due         string
	priority    string
}

func (f *fieldFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "task title")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&f.due, "due", "", "due date, e.g. 2024-03-13T09:30")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "low, medium or high (default medium)")
}

// apply overlays the flags the user set onto base.
func (f *fieldFlags) apply(cmd *cobra.Command, base task.Fields, loc *time.Location) (task.Fields, error) {
	if cmd.Flags().Changed("title") {
		base.Title = f.title
	}
	if cmd.Flags().Changed("description") {
		base.Description = f.description
	}
	if cmd.Flags().Changed("due") {
		due, err := task.ParseDue(f.due, loc)
		if err != nil {
			return base, err
		}
		base.DueDate = due
	}
	if cmd.Flags().Changed("priority") {
		p, err := task.ParsePriority(f.priority)
		if err != nil {
			return base, err
		}
		base.Priority = p
	}
	return base, nil
}

func newAddCmd(o *options) *cobra.Command {
	var ff fieldFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ff.apply(cmd, task.Fields{}, o.loc)
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := a.AddTask(ctx, f)
				if res.Task.ID != "" {
					fmt.Fprintf(out, "Added %s %q due %s\n", shortID(res.Task.ID), res.Task.Title, res.Task.Due().In(o.loc).Format(dueLayout))
				}
				return err
			})
		},
	}
	ff.bind(cmd)
	return cmd
}

func newEditCmd(o *options) *cobra.Command {
	var ff fieldFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task; unset flags keep the current values",
		Long: `edit removes the task and adds it back with the changed fields. The task
gets a new id and goes through conflict rescheduling again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				id, err := resolveID(a, args[0])
				if err != nil {
					return err
				}
				cur, err := a.Task(id)
				if err != nil {
					return err
				}
				// Validate the overlay before removing anything.
				f, err := ff.apply(cmd, task.Prefill(cur), o.loc)
				if err != nil {
					return err
				}
				if _, err := f.Validate(); err != nil {
					return err
				}
				if _, err := a.EditTask(ctx, id); err != nil {
					return err
				}
				res, err := a.AddTask(ctx, f)
				if res.Task.ID != "" {
					fmt.Fprintf(out, "Updated %s -> %s %q due %s\n", shortID(id), shortID(res.Task.ID), res.Task.Title, res.Task.Due().In(o.loc).Format(dueLayout))
				}
				return err
			})
		},
	}
	ff.bind(cmd)
	return cmd
}

func newDeleteCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task and cancel its timer",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				id, err := resolveID(a, args[0])
				if err != nil {
					return err
				}
				if err := a.DeleteTask(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %s\n", shortID(id))
				return nil
			})
		},
	}
}

func newDoneCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle a task between completed and open",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				id, err := resolveID(a, args[0])
				if err != nil {
					return err
				}
				t, err := a.ToggleComplete(ctx, id)
				if err != nil {
					return err
				}
				state := "open"
				if t.Completed {
					state = "completed"
				}
				fmt.Fprintf(out, "%s marked %s\n", shortID(id), state)
				return nil
			})
		},
	}
}

func newListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks in due date order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(_ context.Context, a *app.App, out io.Writer) error {
				v := a.View()
				if err := writeTasks(out, v.Tasks, v.At, o.loc); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out, v.Completion)
				return err
			})
		},
	}
}

func newSearchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "List tasks whose title or description contains term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			return o.withApp(cmd, func(_ context.Context, a *app.App, out io.Writer) error {
				return writeTasks(out, a.Search(term), a.View().At, o.loc)
			})
		},
	}
}
