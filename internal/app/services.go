package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/pipeline/clan_ingest"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/queue"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/scheduler"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/store"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/observability"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type Services struct {
	JobStore  store.JobStore
	Pipeline  *clan_ingest.Pipeline
	Queue     *queue.Queue
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	jobStore := store.New(log, reposet.IngestionJob, store.Options{
		Mode: cfg.JobStoreMode,
		Dir:  cfg.JobStoreDir,
	})

	deps := clan_ingest.Deps{
		DB:        db,
		Log:       log,
		Jobs:      jobStore,
		Fetcher:   clients.Fetcher,
		Clans:     reposet.Clan,
		Members:   reposet.Member,
		Snapshots: reposet.Snapshot,
		Stats:     reposet.MemberStat,
		Metrics:   reposet.DerivedMetric,
		Canonical: reposet.Canonical,
		Joiners:   reposet.Joiner,
		Tenure:    reposet.Tenure,
	}
	if clients.ClanLock != nil {
		deps.Locker = clients.ClanLock
	}
	if clients.Archive != nil {
		deps.Archive = clients.Archive
	}
	if metrics != nil {
		deps.Observer = metrics
	}
	pipeline, err := clan_ingest.New(deps, clan_ingest.Config{
		HomeClanTag:      cfg.HomeClanTag,
		IngestionVersion: cfg.IngestionVersion,
		PhaseTimeout:     cfg.PhaseTimeout,
		LockWait:         cfg.LockWait,
		Seasons:          clan_ingest.SeasonCalendar{Overrides: cfg.Seasons},
	})
	if err != nil {
		return Services{}, fmt.Errorf("init clan ingest pipeline: %w", err)
	}

	qcfg := queue.Config{
		MaxConcurrent: cfg.MaxConcurrentJobs,
		MaxRetries:    cfg.MaxRetries,
	}
	if metrics != nil {
		qcfg.Observer = metrics
	}
	q := queue.New(log, jobStore, pipeline, qcfg)

	sched, err := scheduler.New(log, q, scheduler.Config{
		Specs:   cfg.CronSpecs,
		ClanTag: cfg.HomeClanTag,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init scheduler: %w", err)
	}

	return Services{
		JobStore:  jobStore,
		Pipeline:  pipeline,
		Queue:     q,
		Scheduler: sched,
		Metrics:   metrics,
	}, nil
}
