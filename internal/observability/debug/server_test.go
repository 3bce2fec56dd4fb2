package debug

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "taskclock/pkg/logx"
)

func TestHandlerAuth(t *testing.T) {
	t.Parallel()
	s := New(Config{}, func() any { return map[string]int{"tasks": 3} }, logx.Nop())
	h := s.Handler("secret")

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "no token", path: "/healthz", want: http.StatusUnauthorized},
		{name: "bad query token", path: "/healthz?token=nope", want: http.StatusUnauthorized},
		{name: "query token", path: "/healthz?token=secret", want: http.StatusOK},
		{name: "bearer", path: "/status", header: "Bearer secret", want: http.StatusOK},
		{name: "bad bearer", path: "/status", header: "Bearer other", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	t.Parallel()
	s := New(Config{}, func() any { return map[string]int{"running": 2} }, logx.Nop())
	rec := httptest.NewRecorder()
	s.Handler("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v (%q)", err, rec.Body.String())
	}
	if got["running"] != 2 {
		t.Fatalf("running = %d, want 2", got["running"])
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:6060":     true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestReconfigureStartStop(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	t.Cleanup(func() { s.Stop(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	addr, err := s.Addr(ctx)
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}

	s.Reconfigure(ctx, Config{Enabled: false})
	if _, err := s.Addr(ctx); err == nil {
		t.Fatalf("Addr after disable returned no error")
	}
}
