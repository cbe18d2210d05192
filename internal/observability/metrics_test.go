package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos/testutil"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain/jobs"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/healthcheck", "200", time.Millisecond)
	m.ObservePhase("fetch", true, false, time.Second, nil)
	m.IncAnomaly("writeStats")
	m.SetQueueEntries(1, 1)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus on nil: %v", err)
	}
	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPhaseObservations(t *testing.T) {
	m := NewMetrics()
	rows := int64(50)
	zero := int64(0)
	m.ObservePhase("upsertMembers", true, false, 200*time.Millisecond, &rows)
	m.ObservePhase("upsertMembers", true, false, 300*time.Millisecond, &rows)
	m.ObservePhase("writeStats", true, false, time.Second, &zero)
	m.ObservePhase("calculateDerivedScores", true, true, 0, nil)
	m.ObservePhase("fetch", false, false, 3*time.Second, nil)
	m.IncAnomaly("fetch")

	if got := m.phaseDuration.Count("upsertMembers", "succeeded"); got != 2 {
		t.Errorf("upsertMembers observations = %d, want 2", got)
	}
	if got := m.phaseDuration.Count("calculateDerivedScores", "skipped"); got != 1 {
		t.Errorf("skipped observations = %d, want 1", got)
	}
	if got := m.phaseDuration.Count("fetch", "failed"); got != 1 {
		t.Errorf("failed observations = %d, want 1", got)
	}
	if got := m.phaseRows.Value("upsertMembers"); got != 100 {
		t.Errorf("upsertMembers rows = %v, want 100", got)
	}
	if got := m.phaseRows.Value("writeStats"); got != 0 {
		t.Errorf("writeStats rows = %v, want 0", got)
	}
	if got := m.anomalies.Value("fetch"); got != 1 {
		t.Errorf("fetch anomalies = %v, want 1", got)
	}
}

func TestExpositionFormat(t *testing.T) {
	m := NewMetrics()
	m.ObserveUpstream("player", 200, 300*time.Millisecond)
	m.ObserveUpstream("player", 429, 50*time.Millisecond)
	m.ObserveAPI("post", "/api/ingestion/jobs", "202", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()
	for _, want := range []string{
		"# TYPE clan_ingest_upstream_requests_total counter",
		`clan_ingest_upstream_requests_total{endpoint="player",status="200"} 1`,
		`clan_ingest_upstream_requests_total{endpoint="player",status="429"} 1`,
		`clan_ingest_upstream_request_duration_seconds_bucket{endpoint="player",le="0.05"} 1`,
		`clan_ingest_upstream_request_duration_seconds_bucket{endpoint="player",le="+Inf"} 2`,
		`clan_ingest_upstream_request_duration_seconds_count{endpoint="player"} 2`,
		`clan_ingest_api_requests_total{method="POST",route="/api/ingestion/jobs",status="202"} 1`,
		"clan_ingest_api_inflight_requests 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"route", "status"}, []string{`a"b\c`})
	want := `{route="a\"b\\c",status="unknown"}`
	if got != want {
		t.Fatalf("labelString = %s, want %s", got, want)
	}
	if got := withLe("", "1"); got != `{le="1"}` {
		t.Fatalf("withLe empty = %s", got)
	}
}

func TestCollectJobRows(t *testing.T) {
	db := testutil.DB(t)
	now := time.Now().UTC()
	for i, status := range []jobs.JobStatus{jobs.JobCompleted, jobs.JobCompleted, jobs.JobFailed} {
		row := &jobs.IngestionJobRow{
			ID:        "job-" + string(rune('a'+i)),
			ClanTag:   "#ABC123",
			Status:    string(status),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	m := NewMetrics()
	if err := m.CollectJobRows(context.Background(), db); err != nil {
		t.Fatalf("CollectJobRows: %v", err)
	}
	cases := map[jobs.JobStatus]float64{
		jobs.JobCompleted: 2,
		jobs.JobFailed:    1,
		jobs.JobPending:   0,
		jobs.JobRunning:   0,
	}
	for status, want := range cases {
		if got := m.jobRows.Value(string(status)); got != want {
			t.Errorf("%s rows = %v, want %v", status, got, want)
		}
	}
}
