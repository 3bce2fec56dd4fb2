package reports

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// Spec is a parsed digest schedule.
//
// Accepted forms:
//   - cron: "0 8 * * *", "@daily", "@weekly", "@every 12h"
//   - interval: "12h", "90m", or HH:MM such as "24:00"
//
// A "cron:" or "every:" prefix forces the kind.
type Spec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

// ParseSchedule turns a schedule string into a cron expression or interval.
func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Spec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return Spec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
	case strings.HasPrefix(low, "every:"):
		d, src, err := parseInterval(s[len("every:"):])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: SpecInterval, Every: d, Source: src}, nil
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return Spec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}

	d, src, err := parseInterval(s)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '0 8 * * *', '@daily', HH:MM like '24:00', or a duration like '12h')", raw)
	}
	return Spec{Kind: SpecInterval, Every: d, Source: src}, nil
}

// parseInterval accepts a Go duration or a clock-style HH:MM span.
func parseInterval(v string) (time.Duration, string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, "", errors.New("interval required")
	}
	src := "duration"
	var d time.Duration
	if hh, mm, ok := strings.Cut(v, ":"); ok {
		h, herr := strconv.Atoi(hh)
		m, merr := strconv.Atoi(mm)
		if herr != nil || merr != nil || h < 0 || len(mm) != 2 || m > 59 {
			return 0, "", fmt.Errorf("invalid HH:MM interval %q", v)
		}
		d, src = time.Duration(h)*time.Hour+time.Duration(m)*time.Minute, "hhmm"
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, "", fmt.Errorf("invalid interval %q", v)
		}
	}
	if d <= 0 {
		return 0, "", fmt.Errorf("interval %q must be positive", v)
	}
	return d, src, nil
}

const maxStartupSpread = 30 * time.Second

// spreadSchedule delays only the first run of an interval schedule by a
// jitter so digests configured with the same interval do not fire together.
type spreadSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

func intervalSchedule(every time.Duration, now time.Time, tag string) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	spread := every
	if spread > maxStartupSpread {
		spread = maxStartupSpread
	}
	if spread <= 0 {
		return base, 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(tag))
	rng := rand.New(rand.NewSource(now.UnixNano() ^ int64(h.Sum64())))
	jitter := time.Duration(rng.Int63n(int64(spread)))
	return &spreadSchedule{base: base, first: now.Add(every + jitter)}, jitter
}

// build resolves spec against parser. Interval specs get a startup spread.
func (s Spec) build(parser cron.Parser, now time.Time, tag string) (cron.Schedule, error) {
	switch s.Kind {
	case SpecInterval:
		sched, _ := intervalSchedule(s.Every, now, tag)
		return sched, nil
	default:
		return parser.Parse(s.Cron)
	}
}
