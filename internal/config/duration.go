package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDurationField parses the duration at config path. Besides Go duration
// syntax it accepts a bare integer as milliseconds and an "Nd" day count.
// Blank means zero; negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	v := strings.TrimSpace(raw)
	var (
		d   time.Duration
		err error
	)
	switch {
	case v == "":
		return 0, nil
	case isDigits(v):
		var ms int64
		ms, err = strconv.ParseInt(v, 10, 64)
		d = time.Duration(ms) * time.Millisecond
	case strings.HasSuffix(v, "d") && isDigits(v[:len(v)-1]):
		var days int64
		days, err = strconv.ParseInt(v[:len(v)-1], 10, 64)
		d = time.Duration(days) * 24 * time.Hour
	default:
		d, err = time.ParseDuration(v)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration %q is negative", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault returns def when the field is blank or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	switch {
	case err != nil:
		return 0, err
	case d == 0:
		return def, nil
	}
	return d, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
