package jobs

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further writes are expected for the current attempt.
func (s JobStatus) IsTerminal() bool { return s == JobCompleted || s == JobFailed }

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// JobStep is upserted by Name: a re-run of a phase replaces its record.
type JobStep struct {
	Name       string         `json:"name"`
	Status     StepStatus     `json:"status"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

type AnomalyKind string

const (
	AnomalyPhaseFailed AnomalyKind = "phase_failed"
	AnomalyZeroRows    AnomalyKind = "zero_rows"
)

type Anomaly struct {
	Phase   string      `json:"phase"`
	Kind    AnomalyKind `json:"kind"`
	Message string      `json:"message,omitempty"`
}

// JobResult is the optional result bag. Every field is optional so that
// partial updates can be merged without clobbering what is already set.
type JobResult struct {
	TotalDurationMs  *int64     `json:"totalDurationMs,omitempty"`
	Anomalies        []Anomaly  `json:"anomalies,omitempty"`
	PayloadVersion   string     `json:"payloadVersion,omitempty"`
	IngestionVersion string     `json:"ingestionVersion,omitempty"`
	SchemaVersion    *int       `json:"schemaVersion,omitempty"`
	SnapshotID       string     `json:"snapshotId,omitempty"`
	FetchedAt        *time.Time `json:"fetchedAt,omitempty"`
	ComputedAt       *time.Time `json:"computedAt,omitempty"`
	Retries          *int       `json:"retries,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// Merge copies every field set on other into r.
func (r *JobResult) Merge(other *JobResult) {
	if r == nil || other == nil {
		return
	}
	if other.TotalDurationMs != nil {
		r.TotalDurationMs = other.TotalDurationMs
	}
	if other.Anomalies != nil {
		r.Anomalies = append([]Anomaly(nil), other.Anomalies...)
	}
	if other.PayloadVersion != "" {
		r.PayloadVersion = other.PayloadVersion
	}
	if other.IngestionVersion != "" {
		r.IngestionVersion = other.IngestionVersion
	}
	if other.SchemaVersion != nil {
		r.SchemaVersion = other.SchemaVersion
	}
	if other.SnapshotID != "" {
		r.SnapshotID = other.SnapshotID
	}
	if other.FetchedAt != nil {
		r.FetchedAt = other.FetchedAt
	}
	if other.ComputedAt != nil {
		r.ComputedAt = other.ComputedAt
	}
	if other.Retries != nil {
		r.Retries = other.Retries
	}
	if other.Error != "" {
		r.Error = other.Error
	}
}

// JobRecord is the lifecycle document of one ingestion job.
type JobRecord struct {
	ID        string     `json:"id"`
	ClanTag   string     `json:"clanTag"`
	Status    JobStatus  `json:"status"`
	Attempt   int        `json:"attempt"`
	Steps     []JobStep  `json:"steps"`
	Logs      []LogEntry `json:"logs"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Step returns the step with the given name, or nil.
func (j *JobRecord) Step(name string) *JobStep {
	if j == nil {
		return nil
	}
	for i := range j.Steps {
		if j.Steps[i].Name == name {
			return &j.Steps[i]
		}
	}
	return nil
}
