package timefmt

import (
	"testing"
	"time"
)

func TestElapsed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ms   int64
		want string
	}{
		{name: "zero", ms: 0, want: "00:00:00"},
		{name: "sub second", ms: 999, want: "00:00:00"},
		{name: "one second", ms: 1000, want: "00:00:01"},
		{name: "mixed", ms: 3_723_000, want: "01:02:03"},
		{name: "past a day", ms: 25 * 3_600_000, want: "25:00:00"},
		{name: "three digit hours", ms: 100 * 3_600_000, want: "100:00:00"},
		{name: "negative", ms: -5000, want: "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Elapsed(tt.ms); got != tt.want {
				t.Fatalf("Elapsed(%d) = %s, want %s", tt.ms, got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()
	if got := Duration(90*time.Minute + 5*time.Second); got != "01:30:05" {
		t.Fatalf("Duration = %s, want 01:30:05", got)
	}
}
