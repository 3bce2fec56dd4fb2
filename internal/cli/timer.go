package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"taskclock/internal/app"
	"taskclock/internal/task"
)

type timerAction struct {
	use   string
	short string
	run   func(a *app.App, ctx context.Context, id task.ID) (task.Task, error)
}

var timerActions = []timerAction{
	{use: "start", short: "Start a task timer, continuing from its elapsed time", run: (*app.App).StartTimer},
	{use: "pause", short: "Pause a running timer", run: (*app.App).PauseTimer},
	{use: "resume", short: "Resume a paused timer", run: (*app.App).ResumeTimer},
	{use: "stop", short: "Stop a timer, keeping the elapsed time", run: (*app.App).StopTimer},
	{use: "reset", short: "Stop a timer and clear the elapsed time", run: (*app.App).ResetTimer},
}

func newTimerCmds(o *options) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(timerActions))
	for _, ta := range timerActions {
		cmds = append(cmds, &cobra.Command{
			Use:   ta.use + " <id>",
			Short: ta.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
					id, err := resolveID(a, args[0])
					if err != nil {
						return err
					}
					t, err := ta.run(a, ctx, id)
					if err != nil {
						return err
					}
					writeTimer(out, t)
					return nil
				})
			},
		})
	}
	return cmds
}
