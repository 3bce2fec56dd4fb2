// Package cli is the command line view layer. Each command opens the app,
// loads the task list, runs one operation and saves on exit; serve keeps the
// app running with live timers, digests and config reload.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"taskclock/internal/app"
	"taskclock/internal/notifier"
	"taskclock/internal/task"
	"taskclock/internal/task/store"
	logx "taskclock/pkg/logx"
)

const defaultConfigPath = "./taskclock.yaml"

type options struct {
	configPath string
	logLevel   string

	// now and loc are replaced in tests.
	now func() time.Time
	loc *time.Location
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{loc: time.Local})
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskclock",
		Short: "Task list with due dates, conflict rescheduling and per-task timers",
		Long: `taskclock keeps a due-date ordered task list. Adding a task within the
conflict window of another moves it to the next free slot. Each task has a
timer that can be started, paused, resumed, stopped and reset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", envOr("TASKCLOCK_CONFIG", defaultConfigPath), "path to config file (yaml or json)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")

	root.AddCommand(
		newAddCmd(o),
		newListCmd(o),
		newSearchCmd(o),
		newEditCmd(o),
		newDeleteCmd(o),
		newDoneCmd(o),
		newSummaryCmd(o),
		newReportCmd(o),
		newServeCmd(o),
	)
	root.AddCommand(newTimerCmds(o)...)
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	root := NewRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// openApp opens and loads the app. Notifications are written to out.
func (o *options) openApp(ctx context.Context, out io.Writer, logger logx.Logger) (*app.App, error) {
	a, err := app.Open(o.configPath, app.Options{
		Logger: logger,
		Sink:   notifier.WriterSink(out),
		Now:    o.now,
	})
	if err != nil {
		return nil, err
	}
	if err := a.Load(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// withApp runs fn against a loaded app and closes it afterwards, which saves
// the list and flushes pending notices to the command output.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	level := o.logLevel
	if level == "" {
		level = "warn"
	}
	out := &syncWriter{w: cmd.OutOrStdout()}
	a, err := o.openApp(ctx, out, logx.NewConsole(level))
	if err != nil {
		return err
	}
	runErr := fn(ctx, a, out)
	return errors.Join(runErr, a.Close(ctx))
}

// resolveID accepts a full task id or a unique prefix of one.
func resolveID(a *app.App, ref string) (task.ID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("task id required")
	}
	if _, err := a.Task(task.ID(ref)); err == nil {
		return task.ID(ref), nil
	}
	var (
		match task.ID
		n     int
	)
	for _, t := range a.Tasks() {
		if strings.HasPrefix(string(t.ID), ref) {
			match = t.ID
			n++
		}
	}
	switch n {
	case 0:
		return "", fmt.Errorf("%w: %s", store.ErrNotFound, ref)
	case 1:
		return match, nil
	default:
		return "", fmt.Errorf("task id %q is ambiguous (%d matches)", ref, n)
	}
}

// syncWriter serializes writes from the command and the notifier workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
