package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskclock/internal/app"
	"taskclock/internal/task"
	logx "taskclock/pkg/logx"
	"taskclock/pkg/systemd"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run timers, digests and config reload until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return o.serve(ctx, cmd)
		},
	}
}

func (o *options) serve(ctx context.Context, cmd *cobra.Command) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// An empty --log-level leaves logging to the config file, which then
	// follows hot reloads.
	var logger logx.Logger
	if o.logLevel != "" {
		logger = logx.NewConsole(o.logLevel)
	}
	out := &syncWriter{w: cmd.OutOrStdout()}
	a, err := o.openApp(ctx, out, logger)
	if err != nil {
		return err
	}
	log := a.Logger()

	var lastStatus string
	a.OnRender(func(v app.View) {
		s := statusLine(v)
		if s == lastStatus {
			return
		}
		lastStatus = s
		if _, err := systemd.Status(s); err != nil {
			log.Debug("systemd status failed", logx.Err(err))
		}
	})

	if err := a.Start(ctx); err != nil {
		_ = a.Close(context.Background())
		return err
	}

	wctx, stopWatchdog := context.WithCancel(ctx)
	defer stopWatchdog()
	go func() {
		if err := systemd.RunWatchdog(wctx, log); err != nil {
			log.Warn("systemd watchdog", logx.Err(err))
		}
	}()
	if sent, err := systemd.Ready(); err != nil {
		log.Warn("systemd ready notify failed", logx.Err(err))
	} else if sent {
		log.Debug("systemd notified ready")
	}
	log.Info("serving", logx.String("config", o.configPath))

	reason := app.StopContext
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	case <-ctx.Done():
	}

	stopWatchdog()
	_, _ = systemd.Stopping()
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(a.Err(), a.Stop(stopCtx, reason))
}

func statusLine(v app.View) string {
	running := 0
	for _, t := range v.Tasks {
		if t.State() == task.StateRunning {
			running++
		}
	}
	return fmt.Sprintf("%d tasks, %d running, %d overdue", len(v.Tasks), running, len(v.Overdue))
}
