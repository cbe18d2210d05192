package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/store"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

func newJobContext(t *testing.T) (*jobrt.Context, store.JobStore) {
	t.Helper()
	js := store.New(logger.Nop(), nil, store.Options{Mode: store.ModeFile, Dir: t.TempDir()})
	if _, err := js.CreateJob(context.Background(), "job", "#CLAN"); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return jobrt.NewContext(context.Background(), js, logger.Nop(), "job", "#CLAN", 1), js
}

func ok(n int64) func(context.Context, *jobrt.Context) (Outcome, error) {
	return func(context.Context, *jobrt.Context) (Outcome, error) {
		return Outcome{RowDelta: &n}, nil
	}
}

func TestEngineRunsInOrderAndStopsOnFailure(t *testing.T) {
	jc, js := newJobContext(t)
	var ran []string
	track := func(name string, err error) func(context.Context, *jobrt.Context) (Outcome, error) {
		return func(context.Context, *jobrt.Context) (Outcome, error) {
			ran = append(ran, name)
			return Outcome{}, err
		}
	}
	stages := []Stage{
		{Name: "a", Run: track("a", nil)},
		{Name: "b", Run: track("b", nil)},
		{Name: "c", Run: track("c", errors.New("boom"))},
		{Name: "d", Run: track("d", nil)},
	}
	st, err := NewEngine(time.Second).Run(jc, stages, map[string]bool{"b": true})

	var perr *PhaseError
	if !errors.As(err, &perr) || perr.Phase != "c" {
		t.Fatalf("expected PhaseError for c, got %v", err)
	}
	if strings.Join(ran, ",") != "a,c" {
		t.Fatalf("ran = %v, want a,c", ran)
	}
	if !st.Phases["b"].Skipped || st.Phases["c"].Success || st.FailedPhase != "c" {
		t.Fatalf("unexpected state: %+v", st.Phases)
	}
	if _, ran := st.Phases["d"]; ran {
		t.Fatalf("d must not run after a failure")
	}

	rec, _ := js.GetJob(context.Background(), "job")
	want := map[string]types.StepStatus{"a": types.StepCompleted, "b": types.StepSkipped, "c": types.StepFailed}
	for name, status := range want {
		if s := rec.Step(name); s == nil || s.Status != status {
			t.Errorf("step %s = %+v, want %s", name, s, status)
		}
	}
}

func TestEngineOptionalFailureAndPanic(t *testing.T) {
	jc, _ := newJobContext(t)
	stages := []Stage{
		{Name: "first", Run: ok(3)},
		{Name: "flaky", Optional: true, Run: func(context.Context, *jobrt.Context) (Outcome, error) {
			panic("kaboom")
		}},
		{Name: "last", Run: ok(0)},
	}
	st, err := NewEngine(0).Run(jc, stages, nil)
	if err != nil {
		t.Fatalf("optional failure must not fail the run: %v", err)
	}
	flaky := st.Phases["flaky"]
	if flaky.Success || !strings.Contains(flaky.ErrorMessage, "kaboom") {
		t.Fatalf("panic not converted: %+v", flaky)
	}
	if got := *st.Phases["first"].RowDelta; got != 3 {
		t.Fatalf("row delta = %d", got)
	}
	if len(st.Order) != 3 {
		t.Fatalf("order = %v", st.Order)
	}
}

func TestEngineTimeout(t *testing.T) {
	jc, _ := newJobContext(t)
	stages := []Stage{{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context, _ *jobrt.Context) (Outcome, error) {
			<-ctx.Done()
			return Outcome{}, ctx.Err()
		},
	}}
	_, err := NewEngine(time.Minute).Run(jc, stages, nil)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestValidateStages(t *testing.T) {
	jc, _ := newJobContext(t)
	_, err := NewEngine(0).Run(jc, []Stage{{Name: "a", Run: ok(1)}, {Name: "a", Run: ok(1)}}, nil)
	if err == nil {
		t.Fatalf("duplicate stage names must be rejected")
	}
}
