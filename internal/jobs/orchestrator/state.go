package orchestrator

import (
	"fmt"
	"time"
)

// PhaseResult is the outcome of one stage of one run.
type PhaseResult struct {
	Name         string         `json:"name"`
	Success      bool           `json:"success"`
	Skipped      bool           `json:"skipped,omitempty"`
	Duration     time.Duration  `json:"-"`
	DurationMs   int64          `json:"durationMs"`
	RowDelta     *int64         `json:"rowDelta,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Outcome is what a stage reports back on success. A stage that decides at
// run time not to do anything sets Skipped.
type Outcome struct {
	RowDelta   *int64
	Metadata   map[string]any
	Skipped    bool
	SkipReason string
}

// RunState collects phase results in execution order.
type RunState struct {
	Order       []string
	Phases      map[string]*PhaseResult
	FailedPhase string
}

func newRunState() *RunState {
	return &RunState{Phases: map[string]*PhaseResult{}}
}

func (s *RunState) put(r *PhaseResult) {
	if _, ok := s.Phases[r.Name]; !ok {
		s.Order = append(s.Order, r.Name)
	}
	s.Phases[r.Name] = r
}

// TotalDuration is the sum of phase durations.
func (s *RunState) TotalDuration() time.Duration {
	var d time.Duration
	if s == nil {
		return d
	}
	for _, r := range s.Phases {
		d += r.Duration
	}
	return d
}

// PhaseError is the error that stopped a run.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
