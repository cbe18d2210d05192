package clan_ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/pointers"
)

var tracer = otel.Tracer("ingestion/clan_ingest")

// RunStagedIngestion runs every phase for one clan and records the outcome
// on the job. The returned error is non-nil exactly when Result.Success is
// false.
func (p *Pipeline) RunStagedIngestion(ctx context.Context, opts RunOptions) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	clanTag := gamedata.NormalizeTag(opts.ClanTag)
	if clanTag == "" {
		clanTag = gamedata.NormalizeTag(p.cfg.HomeClanTag)
	}
	if clanTag == "" {
		return nil, fmt.Errorf("%w: clan tag required", apperrors.ErrInvalidArgument)
	}
	jobID := strings.TrimSpace(opts.JobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}

	attempt := opts.Attempt
	if attempt <= 0 {
		attempt = p.beginAttempt(ctx, jobID, clanTag)
	}

	ctx, span := tracer.Start(ctx, "clan_ingest.run", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("clan.tag", clanTag),
		attribute.Int("job.attempt", attempt),
	))
	defer span.End()

	jc := jobrt.NewContext(ctx, p.deps.Jobs, p.log, jobID, clanTag, attempt)

	lockCtx, cancel := context.WithTimeout(ctx, p.cfg.LockWait)
	release, err := p.deps.Locker.Acquire(lockCtx, clanTag)
	cancel()
	if err != nil {
		err = fmt.Errorf("acquire clan lock: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jc.Error("ingestion not started", map[string]any{"error": err.Error()})
		jc.Update(types.JobFailed, &types.JobResult{Error: err.Error()})
		return &Result{JobID: jobID, ClanTag: clanTag, Phases: map[string]PhaseResult{}, Error: err.Error()}, err
	}
	defer release()

	skip := p.skipSet(jc, opts.SkipPhases)
	jc.Info("ingestion started", map[string]any{"skipPhases": opts.SkipPhases})

	st := &runState{jobID: jobID, clanTag: clanTag, fetchedAt: p.now().UTC()}
	runSt, runErr := p.engine.Run(jc, p.stages(st), skip)

	res := p.finish(jc, st, runSt, runErr)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	return res, runErr
}

// beginAttempt makes sure the job exists and starts its next attempt.
func (p *Pipeline) beginAttempt(ctx context.Context, jobID, clanTag string) int {
	attempt := 1
	existing, err := p.deps.Jobs.GetJob(ctx, jobID)
	if err != nil {
		p.log.Warn("job lookup failed", "job_id", jobID, "error", err)
	}
	if existing == nil {
		if _, err := p.deps.Jobs.CreateJob(ctx, jobID, clanTag); err != nil {
			p.log.Warn("job create failed", "job_id", jobID, "error", err)
		}
	} else {
		attempt = existing.Attempt + 1
	}
	if err := p.deps.Jobs.BeginAttempt(ctx, jobID, attempt); err != nil {
		p.log.Warn("job begin attempt failed", "job_id", jobID, "error", err)
	}
	return attempt
}

func (p *Pipeline) skipSet(jc *jobrt.Context, names []string) map[string]bool {
	known := map[string]bool{}
	for _, n := range Phases {
		known[n] = true
	}
	out := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if !known[n] {
			jc.Warn("unknown phase in skip list", map[string]any{"phase": n})
			continue
		}
		out[n] = true
	}
	return out
}

func (p *Pipeline) stages(st *runState) []orchestrator.Stage {
	bind := func(fn func(context.Context, *jobrt.Context, *runState) (orchestrator.Outcome, error)) func(context.Context, *jobrt.Context) (orchestrator.Outcome, error) {
		return func(ctx context.Context, jc *jobrt.Context) (orchestrator.Outcome, error) {
			return fn(ctx, jc, st)
		}
	}
	return []orchestrator.Stage{
		{Name: PhaseFetch, Run: bind(p.fetch)},
		{Name: PhaseTransform, Run: bind(p.transform)},
		{Name: PhaseUpsertMembers, Run: bind(p.upsertMembers)},
		{Name: PhaseWriteSnapshot, Run: bind(p.writeSnapshot)},
		{Name: PhaseWriteStats, Run: bind(p.writeStats)},
		{Name: PhaseCalculateDerivedScores, Optional: true, Run: bind(p.calculateDerivedScores)},
	}
}

func (p *Pipeline) finish(jc *jobrt.Context, st *runState, runSt *orchestrator.RunState, runErr error) *Result {
	res := &Result{
		JobID:   st.jobID,
		ClanTag: st.clanTag,
		Success: runErr == nil,
		Phases:  map[string]PhaseResult{},
	}
	if runSt != nil {
		for name, pr := range runSt.Phases {
			res.Phases[name] = *pr
			if p.deps.Observer != nil {
				p.deps.Observer.ObservePhase(name, pr.Success, pr.Skipped, pr.Duration, pr.RowDelta)
			}
		}
	}

	total := runSt.TotalDuration().Milliseconds()
	computedAt := p.now().UTC()
	jr := &types.JobResult{
		TotalDurationMs:  &total,
		Anomalies:        anomalies(runSt),
		IngestionVersion: p.cfg.IngestionVersion,
		SchemaVersion:    pointers.Int(SchemaVersion),
		ComputedAt:       &computedAt,
	}
	if st.snapshot != nil {
		res.PayloadVersion = st.snapshot.PayloadVersion
		res.SnapshotID = st.snapshot.ID.String()
		fetchedAt := st.snapshot.FetchedAt.UTC()
		jr.PayloadVersion = res.PayloadVersion
		jr.SnapshotID = res.SnapshotID
		jr.FetchedAt = &fetchedAt
	}

	if p.deps.Observer != nil {
		for _, a := range jr.Anomalies {
			p.deps.Observer.IncAnomaly(a.Phase)
		}
	}

	details := map[string]any{
		"totalDurationMs": total,
		"anomalies":       len(jr.Anomalies),
	}
	if runErr != nil {
		res.Error = runErr.Error()
		jr.Error = res.Error
		details["error"] = res.Error
		jc.Update(types.JobFailed, jr)
		jc.Error("ingestion failed", details)
		return res
	}
	jc.Update(types.JobCompleted, jr)
	jc.Info("ingestion completed", details)
	return res
}

// anomalies lists failed phases and zero-row writes on watched phases.
func anomalies(runSt *orchestrator.RunState) []types.Anomaly {
	out := []types.Anomaly{}
	if runSt == nil {
		return out
	}
	for _, name := range runSt.Order {
		pr := runSt.Phases[name]
		switch {
		case !pr.Success:
			out = append(out, types.Anomaly{Phase: name, Kind: types.AnomalyPhaseFailed, Message: pr.ErrorMessage})
		case pr.Skipped:
		case zeroRowWatch[name] && pr.RowDelta != nil && *pr.RowDelta == 0:
			out = append(out, types.Anomaly{Phase: name, Kind: types.AnomalyZeroRows, Message: "phase wrote zero rows"})
		}
	}
	return out
}
