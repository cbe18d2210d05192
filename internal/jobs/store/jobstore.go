package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/db"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/keylock"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type Mode string

const (
	// ModeAuto writes to the primary store and falls back to local files.
	ModeAuto     Mode = "auto"
	ModeDatabase Mode = "database"
	ModeFile     Mode = "file"
)

func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDatabase:
		return ModeDatabase
	case ModeFile:
		return ModeFile
	default:
		return ModeAuto
	}
}

// JobStore is the durable lifecycle record of ingestion jobs.
//
// Mutations are read-modify-write and serialized per job id. An unknown job
// id makes a mutation a logged no-op. Store errors are logged and answered
// with the fallback path; an error is returned only when no path succeeded.
type JobStore interface {
	CreateJob(ctx context.Context, id, clanTag string) (*types.JobRecord, error)
	// BeginAttempt marks the job running for attempt and restarts its step
	// history. Logs are kept.
	BeginAttempt(ctx context.Context, id string, attempt int) error
	AppendLog(ctx context.Context, id string, entry types.LogEntry) error
	UpsertStep(ctx context.Context, id string, step types.JobStep) error
	// UpdateStatus sets status and merges the fields set on result into the
	// stored result. Fields left unset on result are not cleared.
	UpdateStatus(ctx context.Context, id string, status types.JobStatus, result *types.JobResult) error
	GetJob(ctx context.Context, id string) (*types.JobRecord, error)
}

type Options struct {
	Mode Mode
	Dir  string
	Now  func() time.Time
}

type jobStore struct {
	log     *logger.Logger
	mode    Mode
	primary repos.IngestionJobRepo
	local   *LocalStore
	locks   *keylock.Mutex
	now     func() time.Time
}

// New builds a JobStore. primary may be nil, which forces file mode.
func New(baseLog *logger.Logger, primary repos.IngestionJobRepo, opts Options) JobStore {
	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}
	if primary == nil {
		mode = ModeFile
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &jobStore{
		log:     baseLog.With("component", "JobStore", "mode", string(mode)),
		mode:    mode,
		primary: primary,
		local:   NewLocalStore(opts.Dir),
		locks:   keylock.New(),
		now:     func() time.Time { return now().UTC() },
	}
}

func (s *jobStore) usePrimary() bool { return s.mode != ModeFile && s.primary != nil }
func (s *jobStore) useLocal() bool   { return s.mode != ModeDatabase }

func (s *jobStore) CreateJob(ctx context.Context, id, clanTag string) (*types.JobRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("job id required")
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	now := s.now()
	rec := &types.JobRecord{
		ID:        id,
		ClanTag:   clanTag,
		Status:    types.JobPending,
		Steps:     []types.JobStep{},
		Logs:      []types.LogEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.usePrimary() {
		row, err := toRow(rec)
		if err != nil {
			return nil, err
		}
		err = s.primary.Create(dbctx.Context{Ctx: ctx}, row)
		if err == nil {
			return rec, nil
		}
		if db.IsUniqueViolation(err) {
			existing, gerr := s.getLocked(ctx, id)
			if gerr == nil && existing != nil {
				return existing, nil
			}
		}
		if !s.useLocal() {
			return nil, fmt.Errorf("create job %s: %w", id, err)
		}
		s.log.Warn("primary job store create failed; using local file", "job_id", id, "error", err)
	}

	if existing, err := s.local.Get(id); err == nil && existing != nil {
		return existing, nil
	}
	if err := s.local.Put(rec); err != nil {
		return nil, fmt.Errorf("create job %s: %w", id, err)
	}
	return rec, nil
}

func (s *jobStore) BeginAttempt(ctx context.Context, id string, attempt int) error {
	return s.mutate(ctx, id, "BeginAttempt", func(rec *types.JobRecord) {
		rec.Status = types.JobRunning
		rec.Attempt = attempt
		rec.Steps = []types.JobStep{}
		rec.Error = ""
		rec.UpdatedAt = s.now()
	})
}

func (s *jobStore) AppendLog(ctx context.Context, id string, entry types.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	return s.mutate(ctx, id, "AppendLog", func(rec *types.JobRecord) {
		rec.Logs = append(rec.Logs, entry)
		rec.UpdatedAt = entry.Timestamp.UTC()
	})
}

func (s *jobStore) UpsertStep(ctx context.Context, id string, step types.JobStep) error {
	return s.mutate(ctx, id, "UpsertStep", func(rec *types.JobRecord) {
		if existing := rec.Step(step.Name); existing != nil {
			*existing = step
		} else {
			rec.Steps = append(rec.Steps, step)
		}
		rec.UpdatedAt = s.now()
	})
}

func (s *jobStore) UpdateStatus(ctx context.Context, id string, status types.JobStatus, result *types.JobResult) error {
	return s.mutate(ctx, id, "UpdateStatus", func(rec *types.JobRecord) {
		rec.Status = status
		if result != nil {
			if rec.Result == nil {
				rec.Result = &types.JobResult{}
			}
			rec.Result.Merge(result)
			if result.Error != "" {
				rec.Error = result.Error
			}
		}
		rec.UpdatedAt = s.now()
	})
}

func (s *jobStore) GetJob(ctx context.Context, id string) (*types.JobRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return s.getLocked(ctx, id)
}

// getLocked reads primary first, then local. The sources are never merged.
func (s *jobStore) getLocked(ctx context.Context, id string) (*types.JobRecord, error) {
	var primaryErr error
	if s.usePrimary() {
		row, err := s.primary.GetByID(dbctx.Context{Ctx: ctx}, id)
		switch {
		case err != nil:
			primaryErr = err
			s.log.Warn("primary job store read failed", "job_id", id, "error", err)
		case row != nil:
			rec, err := fromRow(row)
			if err == nil {
				return rec, nil
			}
			primaryErr = err
			s.log.Warn("primary job row undecodable", "job_id", id, "error", err)
		}
	}
	if !s.useLocal() {
		return nil, primaryErr
	}
	rec, err := s.local.Get(id)
	if err != nil {
		s.log.Warn("local job store read failed", "job_id", id, "error", err)
		if primaryErr != nil {
			return nil, primaryErr
		}
		return nil, err
	}
	return rec, nil
}

func (s *jobStore) mutate(ctx context.Context, id, op string, apply func(rec *types.JobRecord)) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	rec, err := s.getLocked(ctx, id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
	if rec == nil {
		s.log.Warn("job not found; ignoring write", "op", op, "job_id", id)
		return nil
	}
	apply(rec)
	return s.save(ctx, rec)
}

func (s *jobStore) save(ctx context.Context, rec *types.JobRecord) error {
	if s.usePrimary() {
		row, err := toRow(rec)
		if err != nil {
			return err
		}
		err = s.primary.Save(dbctx.Context{Ctx: ctx}, row)
		if err == nil {
			return nil
		}
		if !s.useLocal() {
			return fmt.Errorf("save job %s: %w", rec.ID, err)
		}
		s.log.Warn("primary job store write failed; using local file", "job_id", rec.ID, "error", err)
	}
	if err := s.local.Put(rec); err != nil {
		return fmt.Errorf("save job %s: %w", rec.ID, err)
	}
	return nil
}
