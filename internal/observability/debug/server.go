// Package debug runs the optional local HTTP endpoint used in serve mode:
// /healthz, /status (task and timer counts as JSON) and net/http/pprof under
// /debug/pprof/.
package debug

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskclock/internal/runtime/supervisor"
	logx "taskclock/pkg/logx"
)

const DefaultAddr = "127.0.0.1:6060"

// maxServeRestarts bounds retries of a listener that keeps failing, such as
// a port held by another process.
const maxServeRestarts = 10

var (
	ErrInsecureBind = errors.New("debug server refused: non-loopback addr requires a token")
	ErrNotRunning   = errors.New("debug server not running")
)

// Config controls the debug server. A non-loopback Addr needs a Token.
type Config struct {
	Enabled bool
	Addr    string
	Token   string
}

func (c Config) addr() string {
	if a := strings.TrimSpace(c.Addr); a != "" {
		return a
	}
	return DefaultAddr
}

// StatusFunc returns the payload served on /status.
type StatusFunc func() any

// Service owns at most one running listener. It is safe for concurrent use.
type Service struct {
	log    logx.Logger
	status StatusFunc

	mu  sync.Mutex
	cfg Config
	cur *listener
}

// listener is one Start..Stop lifetime of the HTTP server.
type listener struct {
	cfg   Config
	sup   *supervisor.Supervisor
	ready chan struct{}

	mu   sync.Mutex
	addr net.Addr
	srv  *http.Server
}

func New(cfg Config, status StatusFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, status: status, log: log.With(logx.String("comp", "debug"))}
}

// Reconfigure stores cfg and starts, stops or restarts the listener so that
// it matches.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) {
	s.mu.Lock()
	prev, running := s.cfg, s.cur != nil
	s.cfg = cfg
	s.mu.Unlock()

	if running && (!cfg.Enabled || prev.addr() != cfg.addr() || prev.Token != cfg.Token) {
		s.Stop(ctx)
		running = false
	}
	if cfg.Enabled && !running {
		s.Start(ctx)
	}
}

// Start launches the listener when enabled and not already running. Serve
// failures are retried with backoff and never reach the caller.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil || !s.cfg.Enabled {
		return
	}
	l := &listener{
		cfg:   s.cfg,
		sup:   supervisor.New(ctx, supervisor.WithLogger(s.log)),
		ready: make(chan struct{}),
	}
	s.cur = l
	l.sup.GoRestart("debug.http", func(c context.Context) error {
		return s.serve(c, l)
	}, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second), supervisor.WithMaxRestarts(maxServeRestarts))
}

// Stop shuts the listener down, waiting for the serve loop at most until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	l := s.cur
	s.cur = nil
	s.mu.Unlock()
	if l == nil {
		return
	}

	l.sup.Cancel()
	l.mu.Lock()
	srv := l.srv
	l.mu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
		}
	}
	if err := l.sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("debug server stop", logx.Err(err))
	}
	s.log.Info("debug server stopped")
}

// Addr waits until the listener is bound and returns its address.
func (s *Service) Addr(ctx context.Context) (string, error) {
	s.mu.Lock()
	l := s.cur
	s.mu.Unlock()
	if l == nil {
		return "", ErrNotRunning
	}
	select {
	case <-l.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.addr == nil {
		return "", ErrNotRunning
	}
	return l.addr.String(), nil
}

func (s *Service) serve(ctx context.Context, l *listener) error {
	addr := l.cfg.addr()
	if l.cfg.Token == "" && !isLoopbackAddr(addr) {
		// Misconfiguration: returning nil ends the restart loop.
		s.log.Error("debug server not started", logx.String("addr", addr), logx.Err(ErrInsecureBind))
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Handler(l.cfg.Token),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	l.mu.Lock()
	l.addr, l.srv = ln.Addr(), srv
	l.mu.Unlock()
	l.markReady()

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	defer stop()

	s.log.Info("debug server listening", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", l.cfg.Token != ""))
	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return context.Canceled
	}
	if errors.Is(err, http.ErrServerClosed) {
		return errors.New("debug server closed unexpectedly")
	}
	return err
}

func (l *listener) markReady() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ready:
	default:
		close(l.ready)
	}
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	switch host = strings.TrimSpace(host); {
	case host == "":
		return false
	case strings.EqualFold(host, "localhost"):
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
