package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain/jobs"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/platform/envutil"
)

// Metrics is the ingestion service's process-local metric set. Every method is
// safe on a nil receiver so callers never have to check whether metrics are on.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	jobsFinished  *CounterVec
	jobAttempts   *CounterVec
	phaseDuration *HistogramVec
	phaseRows     *CounterVec
	anomalies     *CounterVec

	upstreamRequests *CounterVec
	upstreamLatency  *HistogramVec

	queueEntries *GaugeVec
	jobRows      *GaugeVec
	pgStats      *GaugeVec
	redisUp      *Gauge
	redisPing    *Gauge

	scrapeEvery time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metric set when METRICS_ENABLED is on and
// returns nil otherwise.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		instance.scrapeEvery = envutil.Duration("METRICS_SCRAPE_INTERVAL", 10*time.Second, log)
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an unregistered metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("clan_ingest_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"clan_ingest_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		),
		apiInflight: NewGauge("clan_ingest_api_inflight_requests", "In-flight API requests."),

		jobsFinished: NewCounterVec("clan_ingest_jobs_total", "Ingestion jobs reaching a terminal status.", []string{"status"}),
		jobAttempts:  NewCounterVec("clan_ingest_job_attempts_total", "Ingestion job attempts by outcome.", []string{"outcome"}),
		phaseDuration: NewHistogramVec(
			"clan_ingest_phase_duration_seconds",
			"Pipeline phase duration in seconds.",
			[]string{"phase", "status"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		phaseRows: NewCounterVec("clan_ingest_phase_rows_total", "Rows written by pipeline phase.", []string{"phase"}),
		anomalies: NewCounterVec("clan_ingest_anomalies_total", "Phase anomalies by phase.", []string{"phase"}),

		upstreamRequests: NewCounterVec("clan_ingest_upstream_requests_total", "Game API requests by endpoint/status.", []string{"endpoint", "status"}),
		upstreamLatency: NewHistogramVec(
			"clan_ingest_upstream_request_duration_seconds",
			"Game API request latency in seconds by endpoint.",
			[]string{"endpoint"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		),

		queueEntries: NewGaugeVec("clan_ingest_queue_entries", "In-memory queue entries by status.", []string{"status"}),
		jobRows:      NewGaugeVec("clan_ingest_job_rows", "Stored ingestion job records by status.", []string{"status"}),
		pgStats:      NewGaugeVec("clan_ingest_postgres_stats", "Postgres connection pool stats.", []string{"metric"}),
		redisUp:      NewGauge("clan_ingest_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing:    NewGauge("clan_ingest_redis_ping_seconds", "Redis ping latency in seconds."),

		scrapeEvery: 10 * time.Second,
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.jobsFinished, m.jobAttempts, m.phaseDuration, m.phaseRows, m.anomalies,
		m.upstreamRequests, m.upstreamLatency,
		m.queueEntries, m.jobRows, m.pgStats, m.redisUp, m.redisPing,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Add(1)
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Add(-1)
	}
}

// ObserveJobFinished counts a job that reached completed or failed.
func (m *Metrics) ObserveJobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsFinished.Inc(strings.ToLower(strings.TrimSpace(status)))
}

// ObserveAttempt counts one pipeline attempt: "succeeded", "retried" or "failed".
func (m *Metrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.jobAttempts.Inc(outcome)
}

func (m *Metrics) ObservePhase(phase string, success, skipped bool, dur time.Duration, rows *int64) {
	if m == nil {
		return
	}
	status := "failed"
	switch {
	case skipped:
		status = "skipped"
	case success:
		status = "succeeded"
	}
	m.phaseDuration.Observe(dur.Seconds(), phase, status)
	if rows != nil && *rows > 0 {
		m.phaseRows.Add(float64(*rows), phase)
	}
}

func (m *Metrics) IncAnomaly(phase string) {
	if m == nil {
		return
	}
	m.anomalies.Inc(phase)
}

// ObserveUpstream records one game API request. status is the HTTP status,
// 0 for transport errors.
func (m *Metrics) ObserveUpstream(endpoint string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.Inc(endpoint, strconv.Itoa(status))
	m.upstreamLatency.Observe(dur.Seconds(), endpoint)
}

// SetQueueEntries publishes the in-memory queue's pending/running counts.
func (m *Metrics) SetQueueEntries(pending, running int) {
	if m == nil {
		return
	}
	m.queueEntries.Set(float64(pending), "pending")
	m.queueEntries.Set(float64(running), "running")
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: postgres stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

// Pinger is satisfied by the redis clan lock.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StartRedisCollector pings the lock backend on every scrape tick.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb Pinger) {
	if m == nil || rdb == nil {
		return
	}
	m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// StartJobStoreCollector publishes stored job records grouped by status.
func (m *Metrics) StartJobStoreCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		if err := m.CollectJobRows(ctx, db); err != nil && log != nil {
			log.Warn("metrics: job status query failed", "error", err)
		}
	})
}

func (m *Metrics) CollectJobRows(ctx context.Context, db *gorm.DB) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&jobs.IngestionJobRow{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []jobs.JobStatus{jobs.JobPending, jobs.JobRunning, jobs.JobCompleted, jobs.JobFailed} {
		m.jobRows.Set(0, string(s))
	}
	for _, row := range rows {
		m.jobRows.Set(float64(row.Count), row.Status)
	}
	return nil
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	interval := m.scrapeEvery
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
