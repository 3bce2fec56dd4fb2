// Package timefmt renders timer durations for display.
package timefmt

import (
	"fmt"
	"time"
)

// Elapsed formats a millisecond count as HH:MM:SS.
// Hours are not wrapped at 24; negative input renders as 00:00:00.
func Elapsed(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / int64(time.Hour/time.Millisecond)
	minutes := (ms % int64(time.Hour/time.Millisecond)) / int64(time.Minute/time.Millisecond)
	seconds := (ms % int64(time.Minute/time.Millisecond)) / int64(time.Second/time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func Duration(d time.Duration) string { return Elapsed(d.Milliseconds()) }
