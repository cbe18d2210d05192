package runtime

import (
	"context"
	"time"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/store"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

/*
Context is the execution handle for one attempt of one ingestion job.
It wraps:
  - the request-scoped context.Context,
  - the JobStore record of the job (steps, logs, status),
  - a logger scoped to the job.

Phases never touch the JobStore directly. They report through this object so
that step/log shapes stay uniform. Every write is best-effort: a JobStore
failure is logged and never fails the phase that reported it.
*/
type Context struct {
	Ctx     context.Context
	JobID   string
	ClanTag string
	Attempt int
	Store   store.JobStore
	Log     *logger.Logger
	now     func() time.Time
}

func NewContext(ctx context.Context, js store.JobStore, baseLog *logger.Logger, jobID, clanTag string, attempt int) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Context{
		Ctx:     ctx,
		JobID:   jobID,
		ClanTag: clanTag,
		Attempt: attempt,
		Store:   js,
		Log:     baseLog.With("job_id", jobID, "clan_tag", clanTag, "attempt", attempt),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *Context) Now() time.Time {
	if c == nil || c.now == nil {
		return time.Now().UTC()
	}
	return c.now()
}

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(c.Ctx)
}

func (c *Context) enabled() bool { return c != nil && c.Store != nil && c.JobID != "" }

// Record appends a job log entry and mirrors it to the process logger.
func (c *Context) Record(level types.LogLevel, msg string, details map[string]any) {
	if c == nil {
		return
	}
	kv := make([]interface{}, 0, len(details)*2)
	for k, v := range details {
		kv = append(kv, k, v)
	}
	switch level {
	case types.LogError:
		c.Log.Error(msg, kv...)
	case types.LogWarn:
		c.Log.Warn(msg, kv...)
	case types.LogDebug:
		c.Log.Debug(msg, kv...)
	default:
		c.Log.Info(msg, kv...)
	}
	if !c.enabled() {
		return
	}
	entry := types.LogEntry{Timestamp: c.Now(), Level: level, Message: msg, Details: details}
	if err := c.Store.AppendLog(c.ctx(), c.JobID, entry); err != nil {
		c.Log.Warn("job log append failed", "error", err)
	}
}

func (c *Context) Info(msg string, details map[string]any)  { c.Record(types.LogInfo, msg, details) }
func (c *Context) Warn(msg string, details map[string]any)  { c.Record(types.LogWarn, msg, details) }
func (c *Context) Error(msg string, details map[string]any) { c.Record(types.LogError, msg, details) }

/*
StartStep records a phase as running and returns its start time.
Re-running a phase overwrites the step with the same name.
*/
func (c *Context) StartStep(name string) time.Time {
	started := c.Now()
	c.putStep(types.JobStep{Name: name, Status: types.StepRunning, StartedAt: &started})
	return started
}

// FinishStep records the terminal status of a phase started at started.
func (c *Context) FinishStep(name string, status types.StepStatus, started time.Time, metadata map[string]any) {
	finished := c.Now()
	step := types.JobStep{Name: name, Status: status, FinishedAt: &finished, Metadata: metadata}
	if !started.IsZero() {
		step.StartedAt = &started
	}
	c.putStep(step)
}

// SkipStep records a phase that was deliberately not executed.
func (c *Context) SkipStep(name string, reason string) {
	now := c.Now()
	c.putStep(types.JobStep{
		Name:       name,
		Status:     types.StepSkipped,
		FinishedAt: &now,
		Metadata:   map[string]any{"reason": reason},
	})
}

func (c *Context) putStep(step types.JobStep) {
	if !c.enabled() {
		return
	}
	if err := c.Store.UpsertStep(c.ctx(), c.JobID, step); err != nil {
		c.Log.Warn("job step upsert failed", "step", step.Name, "error", err)
	}
}

// Update sets the job status and merges result into the stored result.
func (c *Context) Update(status types.JobStatus, result *types.JobResult) {
	if !c.enabled() {
		return
	}
	if err := c.Store.UpdateStatus(c.ctx(), c.JobID, status, result); err != nil {
		c.Log.Warn("job status update failed", "status", string(status), "error", err)
	}
}
