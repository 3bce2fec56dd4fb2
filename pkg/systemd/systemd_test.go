package systemd

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "taskclock/pkg/logx"
)

func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	dir, err := os.MkdirTemp("", "sdn")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Skipf("unixgram not available: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readState(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read notify socket: %v", err)
	}
	return string(buf[:n])
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	sent, err := Ready()
	if err != nil || sent {
		t.Fatalf("Ready() = %v, %v, want false, nil", sent, err)
	}
}

func TestNotifyStates(t *testing.T) {
	conn := listenNotify(t)

	tests := []struct {
		name string
		fn   func() (bool, error)
		want string
	}{
		{name: "ready", fn: Ready, want: "READY=1"},
		{name: "status", fn: func() (bool, error) { return Status("3 timers running") }, want: "STATUS=3 timers running"},
		{name: "stopping", fn: Stopping, want: "STOPPING=1"},
	}
	for _, tt := range tests {
		sent, err := tt.fn()
		if err != nil || !sent {
			t.Fatalf("%s: sent=%v err=%v", tt.name, sent, err)
		}
		if got := readState(t, conn); got != tt.want {
			t.Fatalf("%s: state = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRunWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")
	done := make(chan error, 1)
	go func() { done <- RunWatchdog(context.Background(), logx.Nop()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunWatchdog: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("RunWatchdog did not return with the watchdog disabled")
	}
}

func TestRunWatchdogPings(t *testing.T) {
	conn := listenNotify(t)
	t.Setenv("WATCHDOG_USEC", "100000")
	t.Setenv("WATCHDOG_PID", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunWatchdog(ctx, logx.Nop()) }()

	if got := readState(t, conn); got != "WATCHDOG=1" {
		t.Fatalf("state = %q, want WATCHDOG=1", got)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("RunWatchdog: %v", err)
	}
}
