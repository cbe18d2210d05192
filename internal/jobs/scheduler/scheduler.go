package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

// Enqueuer is the ingestion entry point the scheduler triggers.
type Enqueuer interface {
	Enqueue(ctx context.Context, clanTag, id string) (string, error)
}

type Config struct {
	// Specs holds standard 5-field cron expressions evaluated in UTC.
	Specs   []string
	ClanTag string
}

// ParseSpecs splits a ';'-separated list of cron expressions.
func ParseSpecs(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Scheduler struct {
	log   *logger.Logger
	cron  *cron.Cron
	queue Enqueuer
	cfg   Config
	ids   []cron.EntryID
}

func New(baseLog *logger.Logger, q Enqueuer, cfg Config) (*Scheduler, error) {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	s := &Scheduler{
		log:   baseLog.With("component", "Scheduler"),
		cron:  cron.New(cron.WithLocation(time.UTC)),
		queue: q,
		cfg:   cfg,
	}
	for _, spec := range cfg.Specs {
		id, err := s.cron.AddFunc(spec, s.trigger)
		if err != nil {
			return nil, fmt.Errorf("cron spec %q: %w", spec, err)
		}
		s.ids = append(s.ids, id)
	}
	return s, nil
}

func (s *Scheduler) trigger() {
	id, err := s.queue.Enqueue(context.Background(), s.cfg.ClanTag, "")
	if err != nil {
		s.log.Error("Scheduled ingestion enqueue failed", "clan_tag", s.cfg.ClanTag, "error", err)
		return
	}
	s.log.Info("Scheduled ingestion enqueued", "clan_tag", s.cfg.ClanTag, "job_id", id)
}

// Start runs the cron loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.ids) == 0 {
		s.log.Warn("No cron specs configured; scheduler idle")
		return
	}
	s.cron.Start()
	s.log.Info("Scheduler started", "specs", s.cfg.Specs, "clan_tag", s.cfg.ClanTag)
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.log.Info("Scheduler stopped")
	}()
}

// Next reports the next fire time after now, or zero when nothing is scheduled.
func (s *Scheduler) Next(now time.Time) time.Time {
	var next time.Time
	for _, id := range s.ids {
		e := s.cron.Entry(id)
		if e.Schedule == nil {
			continue
		}
		t := e.Schedule.Next(now)
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}
