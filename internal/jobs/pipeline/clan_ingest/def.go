package clan_ingest

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/store"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

const (
	PhaseFetch                  = "fetch"
	PhaseTransform              = "transform"
	PhaseUpsertMembers          = "upsertMembers"
	PhaseWriteSnapshot          = "writeSnapshot"
	PhaseWriteStats             = "writeStats"
	PhaseCalculateDerivedScores = "calculateDerivedScores"
)

// Phases lists every phase in execution order.
var Phases = []string{
	PhaseFetch,
	PhaseTransform,
	PhaseUpsertMembers,
	PhaseWriteSnapshot,
	PhaseWriteStats,
	PhaseCalculateDerivedScores,
}

// A zero row delta on these phases is reported as an anomaly.
var zeroRowWatch = map[string]bool{
	PhaseUpsertMembers: true,
	PhaseWriteStats:    true,
}

type SnapshotFetcher interface {
	FetchClanSnapshot(ctx context.Context, clanTag string) (*gamedata.RawSnapshot, error)
}

// ClanLocker serializes runs for one clan.
type ClanLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// RawArchiver stores the raw fetched payload next to the snapshot.
type RawArchiver interface {
	ArchiveRaw(ctx context.Context, clanTag, payloadVersion string, raw []byte) (string, error)
}

// PhaseObserver receives per-phase timings and anomalies once a run ends.
type PhaseObserver interface {
	ObservePhase(phase string, success, skipped bool, dur time.Duration, rows *int64)
	IncAnomaly(phase string)
}

type Deps struct {
	DB        *gorm.DB
	Log       *logger.Logger
	Jobs      store.JobStore
	Fetcher   SnapshotFetcher
	Clans     repos.ClanRepo
	Members   repos.MemberRepo
	Snapshots repos.SnapshotRepo
	Stats     repos.MemberStatRepo
	Metrics   repos.DerivedMetricRepo
	Canonical repos.CanonicalRepo
	Joiners   repos.JoinerRepo
	Tenure    repos.TenureRepo
	// optional
	Locker   ClanLocker
	Archive  RawArchiver
	Observer PhaseObserver
}

type Config struct {
	HomeClanTag      string
	IngestionVersion string
	PhaseTimeout     time.Duration
	// LockWait bounds how long a run waits for another run of the same clan.
	LockWait time.Duration
	Seasons  SeasonCalendar
}

type Pipeline struct {
	deps    Deps
	cfg     Config
	log     *logger.Logger
	engine  *orchestrator.Engine
	metrics *DerivedMetricsWriter
	now     func() time.Time
}

func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	missing := []struct {
		name string
		ok   bool
	}{
		{"DB", deps.DB != nil},
		{"Jobs", deps.Jobs != nil},
		{"Fetcher", deps.Fetcher != nil},
		{"Clans", deps.Clans != nil},
		{"Members", deps.Members != nil},
		{"Snapshots", deps.Snapshots != nil},
		{"Stats", deps.Stats != nil},
		{"Metrics", deps.Metrics != nil},
		{"Canonical", deps.Canonical != nil},
		{"Joiners", deps.Joiners != nil},
		{"Tenure", deps.Tenure != nil},
	}
	for _, m := range missing {
		if !m.ok {
			return nil, fmt.Errorf("clan ingest pipeline: missing %s", m.name)
		}
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if cfg.IngestionVersion == "" {
		cfg.IngestionVersion = "dev"
	}
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = 2 * time.Minute
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 5 * time.Minute
	}
	return &Pipeline{
		deps:    deps,
		cfg:     cfg,
		log:     deps.Log.With("pipeline", "clan_ingest"),
		engine:  orchestrator.NewEngine(cfg.PhaseTimeout),
		metrics: NewDerivedMetricsWriter(deps.Metrics),
		now:     time.Now,
	}, nil
}

type PhaseResult = orchestrator.PhaseResult

type RunOptions struct {
	ClanTag    string
	JobID      string
	SkipPhases []string
	// Attempt > 0 means the caller already began this attempt in the JobStore.
	Attempt int
}

type Result struct {
	JobID          string                 `json:"jobId"`
	ClanTag        string                 `json:"clanTag"`
	Success        bool                   `json:"success"`
	Phases         map[string]PhaseResult `json:"phases"`
	Error          string                 `json:"error,omitempty"`
	PayloadVersion string                 `json:"payloadVersion,omitempty"`
	SnapshotID     string                 `json:"snapshotId,omitempty"`
}
