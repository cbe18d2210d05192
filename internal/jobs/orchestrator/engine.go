package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
)

// -------------------- Public API --------------------

type Stage struct {
	Name string
	// Optional stages are best-effort: a failure is logged as a warning and
	// the run continues.
	Optional bool
	Timeout  time.Duration
	Run      func(ctx context.Context, jc *jobrt.Context) (Outcome, error)
}

type Engine struct {
	DefaultTimeout time.Duration
	Tracer         trace.Tracer
}

func NewEngine(defaultTimeout time.Duration) *Engine {
	return &Engine{
		DefaultTimeout: defaultTimeout,
		Tracer:         otel.Tracer("ingestion/orchestrator"),
	}
}

// Run executes stages in order. Stages named in skip are recorded as skipped
// without running. The first failing non-optional stage stops the run and
// is returned as a *PhaseError.
func (e *Engine) Run(jc *jobrt.Context, stages []Stage, skip map[string]bool) (*RunState, error) {
	st := newRunState()
	if err := validateStages(stages); err != nil {
		return st, &PhaseError{Phase: "validate", Err: err}
	}
	for _, def := range stages {
		if skip[def.Name] {
			jc.SkipStep(def.Name, "skip list")
			st.put(&PhaseResult{Name: def.Name, Success: true, Skipped: true})
			continue
		}

		res, err := e.runStage(jc, def)
		st.put(res)
		if res.Success {
			continue
		}
		if def.Optional {
			jc.Warn("optional phase failed", map[string]any{"phase": def.Name, "error": res.ErrorMessage})
			continue
		}
		st.FailedPhase = def.Name
		return st, &PhaseError{Phase: def.Name, Err: err}
	}
	return st, nil
}

// -------------------- tight helpers --------------------

func (e *Engine) runStage(jc *jobrt.Context, def Stage) (*PhaseResult, error) {
	ctx := jc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := e.Tracer
	if tracer == nil {
		tracer = otel.Tracer("ingestion/orchestrator")
	}
	ctx, span := tracer.Start(ctx, "phase."+def.Name, trace.WithAttributes(
		attribute.String("job.id", jc.JobID),
		attribute.String("clan.tag", jc.ClanTag),
		attribute.Int("job.attempt", jc.Attempt),
	))
	defer span.End()

	started := jc.StartStep(def.Name)
	out, err := e.safeRun(ctx, jc, def)
	dur := time.Since(started)

	res := &PhaseResult{
		Name:       def.Name,
		Duration:   dur,
		DurationMs: dur.Milliseconds(),
		RowDelta:   out.RowDelta,
		Metadata:   out.Metadata,
	}
	meta := stepMetadata(res)

	switch {
	case err != nil:
		res.ErrorMessage = err.Error()
		meta["error"] = res.ErrorMessage
		span.RecordError(err)
		span.SetStatus(codes.Error, res.ErrorMessage)
		jc.FinishStep(def.Name, types.StepFailed, started, meta)
		jc.Error("phase failed", map[string]any{"phase": def.Name, "error": res.ErrorMessage})
	case out.Skipped:
		res.Success = true
		res.Skipped = true
		meta["reason"] = out.SkipReason
		jc.FinishStep(def.Name, types.StepSkipped, started, meta)
	default:
		res.Success = true
		if res.RowDelta != nil {
			span.SetAttributes(attribute.Int64("phase.row_delta", *res.RowDelta))
		}
		jc.FinishStep(def.Name, types.StepCompleted, started, meta)
	}
	return res, err
}

// -------------------- safety + validation --------------------

func validateStages(stages []Stage) error {
	seen := map[string]bool{}
	for _, s := range stages {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("stage missing Name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		if s.Run == nil {
			return fmt.Errorf("stage %q: Run is nil", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// safeRun runs the stage under its deadline and turns a panic into an error.
func (e *Engine) safeRun(ctx context.Context, jc *jobrt.Context, def Stage) (out Outcome, err error) {
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = e.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{}
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	out, err = def.Run(ctx, jc)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("stage %q timed out after %s: %w", def.Name, timeout, err)
	}
	return out, err
}

func stepMetadata(r *PhaseResult) map[string]any {
	meta := map[string]any{"durationMs": r.DurationMs}
	if r.RowDelta != nil {
		meta["rowDelta"] = *r.RowDelta
	}
	for k, v := range r.Metadata {
		meta[k] = v
	}
	return meta
}
