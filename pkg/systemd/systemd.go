// Package systemd reports service state to the systemd manager over the
// notify socket. Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "taskclock/pkg/logx"
)

// Notify sends a raw sd_notify state. sent is false when no socket is
// configured.
func Notify(state string) (sent bool, err error) {
	return daemon.SdNotify(false, state)
}

func Ready() (bool, error)    { return Notify(daemon.SdNotifyReady) }
func Stopping() (bool, error) { return Notify(daemon.SdNotifyStopping) }
func Reloading() (bool, error) {
	return Notify(daemon.SdNotifyReloading)
}

// Status sets the free-form status line shown by systemctl status.
func Status(msg string) (bool, error) { return Notify("STATUS=" + msg) }

// WatchdogInterval returns the keep-alive interval requested by the unit,
// or 0 when the watchdog is disabled for this process.
func WatchdogInterval() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

// RunWatchdog pings the watchdog at half the configured interval until ctx
// ends. It returns immediately when the watchdog is disabled.
func RunWatchdog(ctx context.Context, log logx.Logger) error {
	if log.IsZero() {
		log = logx.Nop()
	}
	every, err := WatchdogInterval()
	if err != nil || every <= 0 {
		return err
	}
	every /= 2
	log.Debug("systemd watchdog enabled", logx.Duration("every", every))

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := Notify(daemon.SdNotifyWatchdog); err != nil {
				log.Warn("systemd watchdog ping failed", logx.Err(err))
			}
		}
	}
}
