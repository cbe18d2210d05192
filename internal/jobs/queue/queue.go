package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/pipeline/clan_ingest"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/store"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/pointers"
)

// Runner executes one attempt of one ingestion job.
type Runner interface {
	RunStagedIngestion(ctx context.Context, opts clan_ingest.RunOptions) (*clan_ingest.Result, error)
}

type Config struct {
	MaxConcurrent int
	// MaxRetries is the number of re-executions after the first failure.
	MaxRetries int
	// PollInterval is how often idle workers re-check the queue without a wake-up.
	PollInterval time.Duration
	// HistoryLimit caps how many finished entries are kept for Entries().
	HistoryLimit int
	// optional
	Observer Observer
}

// Observer receives attempt outcomes and queue depth. *observability.Metrics
// satisfies it.
type Observer interface {
	ObserveAttempt(outcome string)
	ObserveJobFinished(status string)
	SetQueueEntries(pending, running int)
}

const DefaultMaxRetries = 2

// Entry is the in-memory queue state of one job.
type Entry struct {
	ID         string          `json:"id"`
	ClanTag    string          `json:"clanTag"`
	Retries    int             `json:"retries"`
	Status     types.JobStatus `json:"status"`
	LastError  string          `json:"lastError,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`

	// false until the job record exists in the store
	ready bool
}

/*
Queue is a process-local, concurrency-bounded job queue.

  - Enqueue persists the job as pending and wakes a worker.
  - MaxConcurrent workers each claim the oldest pending entry.
  - A failed attempt goes back to pending until MaxRetries re-executions have
    been spent, then the job is failed for good.
  - A clan with a pending or running entry is not enqueued twice.

All queue state is guarded by mu. Nothing is shared across processes.
*/
type Queue struct {
	log    *logger.Logger
	store  store.JobStore
	runner Runner
	cfg    Config

	mu      sync.Mutex
	entries []*Entry
	running map[string]bool

	wake chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func New(baseLog *logger.Logger, js store.JobStore, runner Runner, cfg Config) *Queue {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 200
	}
	return &Queue{
		log:     baseLog.With("component", "JobQueue"),
		store:   js,
		runner:  runner,
		cfg:     cfg,
		running: map[string]bool{},
		wake:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled; Wait
// blocks until they have.
func (q *Queue) Start(ctx context.Context) {
	q.once.Do(func() {
		q.log.Info("Starting job queue", "max_concurrent", q.cfg.MaxConcurrent, "max_retries", q.cfg.MaxRetries)
		for i := 0; i < q.cfg.MaxConcurrent; i++ {
			q.wg.Add(1)
			go q.runLoop(ctx, i+1)
		}
	})
}

func (q *Queue) Wait() { q.wg.Wait() }

// Enqueue adds a pending job for clanTag and returns its id. When the clan
// already has a pending or running entry, that entry's id is returned.
func (q *Queue) Enqueue(ctx context.Context, clanTag, id string) (string, error) {
	clanTag = gamedata.NormalizeTag(clanTag)
	if clanTag == "" {
		return "", fmt.Errorf("%w: clan tag required", apperrors.ErrInvalidArgument)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	q.mu.Lock()
	if existing := q.activeLocked(id); existing != nil {
		q.mu.Unlock()
		return existing.ID, nil
	}
	if existing := q.activeForClanLocked(clanTag); existing != nil {
		q.mu.Unlock()
		q.log.Info("Clan already queued", "clan_tag", clanTag, "job_id", existing.ID)
		return existing.ID, nil
	}
	q.dropEntryLocked(id)
	e := &Entry{ID: id, ClanTag: clanTag, Status: types.JobPending, EnqueuedAt: time.Now().UTC()}
	q.entries = append(q.entries, e)
	q.publishDepthLocked()
	q.mu.Unlock()

	if _, err := q.store.CreateJob(ctx, id, clanTag); err != nil {
		q.mu.Lock()
		q.dropEntryLocked(id)
		q.publishDepthLocked()
		q.mu.Unlock()
		return "", fmt.Errorf("create job: %w", err)
	}
	q.mu.Lock()
	e.ready = true
	q.mu.Unlock()
	q.log.Info("Job enqueued", "job_id", id, "clan_tag", clanTag)
	q.signal()
	return id, nil
}

// Entries returns a copy of the queue state in enqueue order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	return out
}

// Idle reports whether no entry is pending or running.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.running) > 0 {
		return false
	}
	for _, e := range q.entries {
		if e.Status == types.JobPending || e.Status == types.JobRunning {
			return false
		}
	}
	return true
}

// Drain blocks until the queue is idle or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) runLoop(ctx context.Context, workerID int) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for {
			if ctx.Err() != nil {
				break
			}
			e := q.claim()
			if e == nil {
				break
			}
			q.process(ctx, workerID, e)
		}
		select {
		case <-ctx.Done():
			q.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-q.wake:
		case <-ticker.C:
		}
	}
}

// claim marks the first pending entry running and returns a copy of it.
func (q *Queue) claim() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.running) >= q.cfg.MaxConcurrent {
		return nil
	}
	for _, e := range q.entries {
		if e.Status != types.JobPending || !e.ready || q.running[e.ID] {
			continue
		}
		e.Status = types.JobRunning
		q.running[e.ID] = true
		q.publishDepthLocked()
		cp := *e
		return &cp
	}
	return nil
}

func (q *Queue) process(ctx context.Context, workerID int, e *Entry) {
	attempt := e.Retries + 1
	log := q.log.With("worker_id", workerID, "job_id", e.ID, "clan_tag", e.ClanTag, "attempt", attempt)
	if err := q.store.BeginAttempt(ctx, e.ID, attempt); err != nil {
		log.Warn("BeginAttempt failed", "error", err)
	}

	runErr := q.runSafe(ctx, clan_ingest.RunOptions{ClanTag: e.ClanTag, JobID: e.ID, Attempt: attempt})
	// The store and observer are updated before the entry leaves running so
	// that Drain never returns ahead of the persisted outcome.
	if runErr == nil {
		q.updateStatus(log, e.ID, types.JobCompleted, &types.JobResult{Retries: pointers.Int(e.Retries)})
		q.observe("succeeded", types.JobCompleted)
		q.finish(e.ID, types.JobCompleted, e.Retries, "")
		log.Info("Job completed")
		q.signal()
		return
	}

	msg := runErr.Error()
	q.appendLog(log, e.ID, types.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     types.LogError,
		Message:   "attempt failed",
		Details:   map[string]any{"attempt": attempt, "error": msg},
	})
	if e.Retries < q.cfg.MaxRetries {
		retries := e.Retries + 1
		q.updateStatus(log, e.ID, types.JobPending, &types.JobResult{Retries: pointers.Int(retries)})
		q.observe("retried", "")
		q.finish(e.ID, types.JobPending, retries, msg)
		log.Warn("Job attempt failed, will retry", "retries", retries, "error", msg)
	} else {
		q.updateStatus(log, e.ID, types.JobFailed, &types.JobResult{Retries: pointers.Int(e.Retries), Error: msg})
		q.observe("failed", types.JobFailed)
		q.finish(e.ID, types.JobFailed, e.Retries, msg)
		log.Error("Job failed", "retries", e.Retries, "error", msg)
	}
	q.signal()
}

func (q *Queue) runSafe(ctx context.Context, opts clan_ingest.RunOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Job runner panic", "job_id", opts.JobID, "panic", r)
			err = errFromRecover(r)
		}
	}()
	if q.runner == nil {
		return errNoRunner
	}
	_, err = q.runner.RunStagedIngestion(ctx, opts)
	return err
}

func (q *Queue) finish(id string, status types.JobStatus, retries int, lastErr string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
	for _, e := range q.entries {
		if e.ID == id {
			e.Status = status
			e.Retries = retries
			e.LastError = lastErr
			break
		}
	}
	q.pruneLocked()
	q.publishDepthLocked()
}

func (q *Queue) observe(outcome string, terminal types.JobStatus) {
	if q.cfg.Observer == nil {
		return
	}
	q.cfg.Observer.ObserveAttempt(outcome)
	if terminal != "" {
		q.cfg.Observer.ObserveJobFinished(string(terminal))
	}
}

func (q *Queue) publishDepthLocked() {
	if q.cfg.Observer == nil {
		return
	}
	pending := 0
	for _, e := range q.entries {
		if e.Status == types.JobPending {
			pending++
		}
	}
	q.cfg.Observer.SetQueueEntries(pending, len(q.running))
}

func (q *Queue) updateStatus(log *logger.Logger, id string, status types.JobStatus, res *types.JobResult) {
	if err := q.store.UpdateStatus(context.Background(), id, status, res); err != nil {
		log.Warn("UpdateStatus failed", "status", string(status), "error", err)
	}
}

func (q *Queue) appendLog(log *logger.Logger, id string, entry types.LogEntry) {
	if err := q.store.AppendLog(context.Background(), id, entry); err != nil {
		log.Warn("AppendLog failed", "error", err)
	}
}

func (q *Queue) signal() {
	for i := 0; i < q.cfg.MaxConcurrent; i++ {
		select {
		case q.wake <- struct{}{}:
		default:
			return
		}
	}
}

func (q *Queue) activeLocked(id string) *Entry {
	for _, e := range q.entries {
		if e.ID == id && (e.Status == types.JobPending || e.Status == types.JobRunning) {
			return e
		}
	}
	return nil
}

func (q *Queue) activeForClanLocked(clanTag string) *Entry {
	for _, e := range q.entries {
		if e.ClanTag == clanTag && (e.Status == types.JobPending || e.Status == types.JobRunning) {
			return e
		}
	}
	return nil
}

func (q *Queue) dropEntryLocked(id string) {
	for i, e := range q.entries {
		if e.ID == id && !q.running[id] {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// pruneLocked drops the oldest finished entries beyond HistoryLimit.
func (q *Queue) pruneLocked() {
	finished := 0
	for _, e := range q.entries {
		if e.Status.IsTerminal() {
			finished++
		}
	}
	excess := finished - q.cfg.HistoryLimit
	if excess <= 0 {
		return
	}
	kept := q.entries[:0]
	for _, e := range q.entries {
		if excess > 0 && e.Status.IsTerminal() {
			excess--
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
}

type runnerError string

func (e runnerError) Error() string { return string(e) }

const errNoRunner = runnerError("job queue has no runner")

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
