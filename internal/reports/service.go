// Package reports publishes periodic daily and weekly summary digests through
// the notifier on cron schedules.
package reports

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"taskclock/internal/eventbus"
	"taskclock/internal/notifier"
	"taskclock/internal/task"
	logx "taskclock/pkg/logx"
)

type Config struct {
	Enabled  bool
	Daily    string // schedule, empty disables
	Weekly   string
	Timezone string
}

// Source returns the current task list.
type Source func() []task.Task

// Notifier is the subset of notifier.Service used for delivery.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// Entry describes a registered digest.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

type digest struct {
	name   string
	spec   string
	render func([]task.Task, time.Time) string
	id     cron.EntryID
}

type Service struct {
	mu sync.Mutex

	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	defs   []digest

	source Source
	notify Notifier
	bus    eventbus.Bus
	log    logx.Logger
	now    func() time.Time
	ctx    context.Context
}

func New(cfg Config, source Source, notify Notifier, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		source: source,
		notify: notify,
		bus:    bus,
		log:    log.With(logx.String("comp", "reports")),
		now:    time.Now,
	}
}

// SetNow replaces the clock used for digest contents and schedule anchors.
func (s *Service) SetNow(now func() time.Time) {
	if now == nil {
		return
	}
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Validate checks the configured schedules without starting anything.
func Validate(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, raw := range map[string]string{"daily": cfg.Daily, "weekly": cfg.Weekly} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		spec, err := ParseSchedule(raw)
		if err != nil {
			return fmt.Errorf("reports.%s: %w", name, err)
		}
		if spec.Kind == SpecCron {
			if _, err := parser.Parse(spec.Cron); err != nil {
				return fmt.Errorf("reports.%s: %w", name, err)
			}
		}
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("reports.timezone: %w", err)
		}
	}
	return nil
}

// Start registers the digests and starts the cron runner. Calling Start on a
// running service restarts it with the current config.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	return s.restartLocked()
}

// Stop halts the cron runner and waits for running digests.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.defs = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Apply swaps the config and restarts the runner if it was started.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.ctx == nil {
		return nil
	}
	return s.restartLocked()
}

func (s *Service) restartLocked() error {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.defs = nil
	if !s.cfg.Enabled {
		s.log.Info("reports disabled")
		return nil
	}

	s.loc = s.loadLocationLocked()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	candidates := []digest{
		{name: "daily", spec: s.cfg.Daily, render: DailyDigest},
		{name: "weekly", spec: s.cfg.Weekly, render: WeeklyDigest},
	}
	for _, d := range candidates {
		if strings.TrimSpace(d.spec) == "" {
			continue
		}
		spec, err := ParseSchedule(d.spec)
		if err != nil {
			return fmt.Errorf("reports.%s: %w", d.name, err)
		}
		sched, err := spec.build(s.parser, s.now().In(s.loc), d.name)
		if err != nil {
			return fmt.Errorf("reports.%s: %w", d.name, err)
		}
		ctx, loc, render, name := s.ctx, s.loc, d.render, d.name
		// Jobs never take s.mu: restartLocked waits for them while holding it.
		d.id = c.Schedule(sched, cron.FuncJob(func() {
			if err := s.publish(ctx, loc, name, render); err != nil {
				s.log.Warn("digest not delivered", logx.String("digest", name), logx.Err(err))
			}
		}))
		s.defs = append(s.defs, d)
	}
	c.Start()
	s.c = c
	s.log.Info("reports started", logx.String("tz", s.loc.String()), logx.Int("digests", len(s.defs)))
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Entries lists registered digests with their next run time.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.defs))
	for _, d := range s.defs {
		e := Entry{Name: d.name, Spec: d.spec}
		if s.c != nil {
			e.Next = s.c.Entry(d.id).Next
		}
		out = append(out, e)
	}
	return out
}

// RunNow publishes the named digest ("daily" or "weekly") immediately.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	loc := s.loc
	if loc == nil {
		loc = s.loadLocationLocked()
	}
	s.mu.Unlock()
	switch name {
	case "daily":
		return s.publish(ctx, loc, name, DailyDigest)
	case "weekly":
		return s.publish(ctx, loc, name, WeeklyDigest)
	default:
		return fmt.Errorf("unknown digest %q", name)
	}
}

func (s *Service) publish(ctx context.Context, loc *time.Location, name string, render func([]task.Task, time.Time) string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	now := s.now().In(loc)

	var tasks []task.Task
	if s.source != nil {
		tasks = s.source()
	}
	text := render(tasks, now)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.ReportPublished, Time: now, Data: map[string]string{"digest": name, "text": text}})
	}
	if s.notify == nil {
		return nil
	}
	return s.notify.Notify(ctx, notifier.Notification{Kind: notifier.KindDigest, Title: name, Text: text, At: now})
}
