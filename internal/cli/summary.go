package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"taskclock/internal/app"
)

func newSummaryCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show today's, this week's and overall counts plus overdue tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(_ context.Context, a *app.App, out io.Writer) error {
				v := a.View()
				return writeSummary(out, v.Daily, v.Weekly, v.Completion, a.Overdue(), o.loc)
			})
		},
	}
}

func newReportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:       "report <daily|weekly>",
		Short:     "Publish a summary digest through the notifier now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"daily", "weekly"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, a *app.App, _ io.Writer) error {
				return a.Report(ctx, args[0])
			})
		},
	}
}
