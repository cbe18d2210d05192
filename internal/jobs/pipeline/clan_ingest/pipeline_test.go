package clan_ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos/testutil"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/store"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
)

const testClan = "#ABC123"

type fakeFetcher struct {
	mu    sync.Mutex
	raw   *gamedata.RawSnapshot
	err   error
	calls int
}

func (f *fakeFetcher) set(raw *gamedata.RawSnapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw, f.err = raw, err
}

func (f *fakeFetcher) FetchClanSnapshot(ctx context.Context, clanTag string) (*gamedata.RawSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.raw
	return &cp, nil
}

type fakeArchive struct {
	keys []string
}

func (a *fakeArchive) ArchiveRaw(ctx context.Context, clanTag, payloadVersion string, raw []byte) (string, error) {
	key := fmt.Sprintf("mem://snapshots/%s/%s.json", clanTag, payloadVersion)
	a.keys = append(a.keys, key)
	return key, nil
}

type harness struct {
	p       *Pipeline
	deps    Deps
	fetcher *fakeFetcher
	archive *fakeArchive
	dbc     dbctx.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	h := &harness{fetcher: &fakeFetcher{}, archive: &fakeArchive{}, dbc: dbctx.Context{Ctx: context.Background()}}
	h.deps = Deps{
		DB:        db,
		Log:       log,
		Jobs:      store.New(log, repos.NewIngestionJobRepo(db, log), store.Options{Mode: store.ModeDatabase}),
		Fetcher:   h.fetcher,
		Clans:     repos.NewClanRepo(db, log),
		Members:   repos.NewMemberRepo(db, log),
		Snapshots: repos.NewSnapshotRepo(db, log),
		Stats:     repos.NewMemberStatRepo(db, log),
		Metrics:   repos.NewDerivedMetricRepo(db, log),
		Canonical: repos.NewCanonicalRepo(db, log),
		Joiners:   repos.NewJoinerRepo(db, log),
		Tenure:    repos.NewTenureRepo(db, log),
		Archive:   h.archive,
	}
	p, err := New(h.deps, Config{HomeClanTag: testClan, IngestionVersion: "test-1", PhaseTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.p = p
	return h
}

func (h *harness) run(t *testing.T, opts RunOptions) (*Result, error) {
	t.Helper()
	return h.p.RunStagedIngestion(context.Background(), opts)
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}, Config{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
}

func TestRunStagedIngestionDetectsJoiner(t *testing.T) {
	h := newHarness(t)
	prior := date(2025, 1, 6, 4)
	if _, err := h.deps.Members.Upsert(h.dbc, []*types.Member{
		{ClanTag: testClan, Tag: "#P1", Name: "one", LastSeenAt: prior},
		{ClanTag: testClan, Tag: "#P2", Name: "two", LastSeenAt: prior},
	}); err != nil {
		t.Fatalf("seed members: %v", err)
	}

	fetchedAt := date(2025, 1, 7, 4) // Tuesday
	h.fetcher.set(rawSnapshot(testClan, fetchedAt, 0, "#P1", "#P2", "#P3"), nil)

	res, err := h.run(t, RunOptions{ClanTag: "abc123", JobID: "job-joiner"})
	if err != nil {
		t.Fatalf("RunStagedIngestion: %v", err)
	}
	if !res.Success || res.ClanTag != testClan {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, name := range Phases {
		if _, ok := res.Phases[name]; !ok {
			t.Errorf("missing phase result %s", name)
		}
	}
	if got := res.Phases[PhaseUpsertMembers].RowDelta; got == nil || *got != 3 {
		t.Fatalf("upsertMembers rowDelta=%v, want 3", got)
	}
	if !res.Phases[PhaseCalculateDerivedScores].Skipped {
		t.Fatalf("derived scores should skip on a Tuesday snapshot")
	}

	joiners, err := h.deps.Joiners.ListByClan(h.dbc, testClan)
	if err != nil {
		t.Fatalf("ListByClan: %v", err)
	}
	if len(joiners) != 1 || joiners[0].PlayerTag != "#P3" || !joiners[0].DetectedAt.Equal(date(2025, 1, 7, 0)) {
		t.Fatalf("joiners=%+v, want one #P3 event on the snapshot day", joiners)
	}
	entries, err := h.deps.Tenure.ListForTags(h.dbc, testClan, []string{"#P1", "#P2", "#P3"})
	if err != nil {
		t.Fatalf("ListForTags: %v", err)
	}
	if len(entries["#P1"]) != 0 || len(entries["#P2"]) != 0 || len(entries["#P3"]) != 1 {
		t.Fatalf("tenure entries=%v, want only #P3 seeded", entries)
	}

	stats, err := h.deps.Stats.ListBySnapshot(h.dbc, res.SnapshotID)
	if err != nil {
		t.Fatalf("ListBySnapshot: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("stat rows=%d, want 3", len(stats))
	}
	for _, s := range stats {
		if s.PlayerTag == "#P3" && (s.TenureDays == nil || *s.TenureDays != 1) {
			t.Fatalf("joiner tenure=%v, want 1", s.TenureDays)
		}
		if len(s.Enrichment) == 0 {
			t.Fatalf("%s missing enrichment", s.PlayerTag)
		}
	}

	want := PayloadVersion(fetchedAt, 3, testClan, SchemaVersion)
	if res.PayloadVersion != want {
		t.Fatalf("payloadVersion=%s, want %s", res.PayloadVersion, want)
	}
	if len(h.archive.keys) != 1 {
		t.Fatalf("archive writes=%d, want 1", len(h.archive.keys))
	}

	job, err := h.deps.Jobs.GetJob(context.Background(), "job-joiner")
	if err != nil || job == nil {
		t.Fatalf("GetJob: job=%v err=%v", job, err)
	}
	if job.Status != types.JobCompleted || job.Attempt != 1 {
		t.Fatalf("job status=%s attempt=%d", job.Status, job.Attempt)
	}
	r := job.Result
	if r == nil || r.PayloadVersion != want || r.IngestionVersion != "test-1" || r.SchemaVersion == nil || *r.SchemaVersion != SchemaVersion {
		t.Fatalf("version triad not recorded: %+v", r)
	}
	if len(job.Steps) != len(Phases) {
		t.Fatalf("steps=%d, want %d", len(job.Steps), len(Phases))
	}

	// Same inputs again under a new job: nothing fires twice and the snapshot is reused.
	res2, err := h.run(t, RunOptions{ClanTag: testClan, JobID: "job-joiner-2"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res2.SnapshotID != res.SnapshotID {
		t.Fatalf("identical content produced a new snapshot: %s vs %s", res2.SnapshotID, res.SnapshotID)
	}
	joiners, _ = h.deps.Joiners.ListByClan(h.dbc, testClan)
	if len(joiners) != 1 {
		t.Fatalf("joiner fired twice: %d events", len(joiners))
	}
}

func TestRetriedJobKeepsSnapshotAndStatsIdempotent(t *testing.T) {
	h := newHarness(t)
	tags := make([]string, 50)
	for i := range tags {
		tags[i] = fmt.Sprintf("#Q%02d", i)
	}
	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 8, 4), 0, tags...), nil)

	first, err := h.run(t, RunOptions{JobID: "job-retry"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	// a retry of the same job sees slightly newer content
	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 8, 5), 7, tags...), nil)
	second, err := h.run(t, RunOptions{JobID: "job-retry"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.SnapshotID != first.SnapshotID {
		t.Fatalf("retry inserted a second snapshot: %s vs %s", second.SnapshotID, first.SnapshotID)
	}
	if second.PayloadVersion == first.PayloadVersion {
		t.Fatalf("changed content kept payload version %s", first.PayloadVersion)
	}
	n, err := h.deps.Stats.CountBySnapshot(h.dbc, second.SnapshotID)
	if err != nil {
		t.Fatalf("CountBySnapshot: %v", err)
	}
	if n != 50 {
		t.Fatalf("stat rows=%d, want 50", n)
	}
	canon, err := h.deps.Canonical.ListBySnapshot(h.dbc, second.SnapshotID)
	if err != nil || len(canon) != 50 {
		t.Fatalf("canonical rows=%d err=%v", len(canon), err)
	}
	joiners, _ := h.deps.Joiners.ListByClan(h.dbc, testClan)
	if len(joiners) != 0 {
		t.Fatalf("bootstrap run recorded %d joiners", len(joiners))
	}
	job, _ := h.deps.Jobs.GetJob(context.Background(), "job-retry")
	if job.Attempt != 2 || job.Status != types.JobCompleted {
		t.Fatalf("job attempt=%d status=%s", job.Attempt, job.Status)
	}
}

func TestRetryWithSmallerRosterReplacesProjection(t *testing.T) {
	h := newHarness(t)
	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 8, 4), 0, "#P1", "#P2", "#P3"), nil)
	first, err := h.run(t, RunOptions{JobID: "job-shrink"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 8, 5), 0, "#P1", "#P2"), nil)
	second, err := h.run(t, RunOptions{JobID: "job-shrink"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if second.SnapshotID != first.SnapshotID {
		t.Fatalf("retry inserted a second snapshot: %s vs %s", second.SnapshotID, first.SnapshotID)
	}

	stats, err := h.deps.Stats.ListBySnapshot(h.dbc, second.SnapshotID)
	if err != nil {
		t.Fatalf("ListBySnapshot stats: %v", err)
	}
	canon, err := h.deps.Canonical.ListBySnapshot(h.dbc, second.SnapshotID)
	if err != nil {
		t.Fatalf("ListBySnapshot canonical: %v", err)
	}
	if len(stats) != 2 || len(canon) != 2 {
		t.Fatalf("stats=%d canonical=%d, want 2/2", len(stats), len(canon))
	}
	for i := range stats {
		if stats[i].PlayerTag != canon[i].PlayerTag {
			t.Fatalf("stat %s has no matching projection (got %s)", stats[i].PlayerTag, canon[i].PlayerTag)
		}
	}
}

func TestJoinerRunKeepsStoredTenure(t *testing.T) {
	h := newHarness(t)
	prior := date(2025, 1, 6, 4)
	if _, err := h.deps.Members.Upsert(h.dbc, []*types.Member{
		{ClanTag: testClan, Tag: "#P1", Name: "one", TenureDays: intp(100), TenureAsOf: &prior, LastSeenAt: prior},
		{ClanTag: testClan, Tag: "#P2", Name: "two", TenureDays: intp(100), TenureAsOf: &prior, LastSeenAt: prior},
	}); err != nil {
		t.Fatalf("seed members: %v", err)
	}

	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 7, 4), 0, "#P1", "#P2", "#P3"), nil)
	if _, err := h.run(t, RunOptions{JobID: "job-keep-tenure"}); err != nil {
		t.Fatalf("RunStagedIngestion: %v", err)
	}

	rows, err := h.deps.Members.ListByClan(h.dbc, testClan)
	if err != nil || len(rows) != 3 {
		t.Fatalf("ListByClan: rows=%d err=%v", len(rows), err)
	}
	want := map[string]int{"#P1": 100, "#P2": 100, "#P3": 1}
	for _, m := range rows {
		if m.TenureDays == nil || *m.TenureDays != want[m.Tag] {
			t.Errorf("%s tenure=%v, want %d", m.Tag, m.TenureDays, want[m.Tag])
		}
	}
}

func TestSkipListAndMissingInput(t *testing.T) {
	h := newHarness(t)
	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 8, 4), 0, "#P1"), nil)

	res, err := h.run(t, RunOptions{JobID: "job-skip", SkipPhases: []string{PhaseFetch, "noSuchPhase"}})
	if err == nil || res.Success {
		t.Fatalf("expected failure when transform has no input, got %+v", res)
	}
	if !errors.Is(err, apperrors.ErrPhaseInput) {
		t.Fatalf("err=%v, want ErrPhaseInput", err)
	}
	var pe *orchestrator.PhaseError
	if !errors.As(err, &pe) || pe.Phase != PhaseTransform {
		t.Fatalf("err=%v, want PhaseError on transform", err)
	}
	if !res.Phases[PhaseFetch].Skipped {
		t.Fatalf("fetch not recorded as skipped")
	}
	if h.fetcher.calls != 0 {
		t.Fatalf("skipped fetch still called the client %d times", h.fetcher.calls)
	}

	job, _ := h.deps.Jobs.GetJob(context.Background(), "job-skip")
	if job.Status != types.JobFailed || job.Error == "" {
		t.Fatalf("job status=%s error=%q", job.Status, job.Error)
	}
	if len(job.Result.Anomalies) != 1 || job.Result.Anomalies[0].Phase != PhaseTransform {
		t.Fatalf("anomalies=%+v", job.Result.Anomalies)
	}
}

func TestFetchFailureFailsJob(t *testing.T) {
	h := newHarness(t)
	h.fetcher.set(nil, &gamedata.APIError{Status: 503, Reason: "maintenance"})

	res, err := h.run(t, RunOptions{JobID: "job-down"})
	if err == nil || res.Success {
		t.Fatal("expected failure")
	}
	var apiErr *gamedata.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 503 {
		t.Fatalf("err=%v, want wrapped APIError", err)
	}
	if _, ran := res.Phases[PhaseTransform]; ran {
		t.Fatalf("pipeline continued after fetch failure")
	}
	if res.Error == "" {
		t.Fatal("result error not set")
	}
}

func TestZeroRowWritesAreAnomalies(t *testing.T) {
	h := newHarness(t)
	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 8, 4), 0), nil)

	res, err := h.run(t, RunOptions{JobID: "job-empty"})
	if err != nil {
		t.Fatalf("empty roster should not fail: %v", err)
	}
	job, _ := h.deps.Jobs.GetJob(context.Background(), "job-empty")
	got := map[string]types.AnomalyKind{}
	for _, a := range job.Result.Anomalies {
		got[a.Phase] = a.Kind
	}
	if got[PhaseUpsertMembers] != types.AnomalyZeroRows || got[PhaseWriteStats] != types.AnomalyZeroRows || len(got) != 2 {
		t.Fatalf("anomalies=%+v", job.Result.Anomalies)
	}
	if !res.Success {
		t.Fatal("anomalies must not fail the job")
	}
}

func TestWeeklyScoresOnMonday(t *testing.T) {
	h := newHarness(t)
	tags := []string{"#P1", "#P2"}

	h.fetcher.set(rawSnapshot(testClan, date(2024, 12, 30, 4), 0, tags...), nil)
	first, err := h.run(t, RunOptions{JobID: "week-1"})
	if err != nil {
		t.Fatalf("baseline run: %v", err)
	}
	if pr := first.Phases[PhaseCalculateDerivedScores]; !pr.Skipped {
		t.Fatalf("first Monday has no baseline and should skip: %+v", pr)
	}

	monday := date(2025, 1, 6, 4)
	h.fetcher.set(rawSnapshot(testClan, monday, 200, tags...), nil)
	second, err := h.run(t, RunOptions{JobID: "week-2"})
	if err != nil {
		t.Fatalf("monday run: %v", err)
	}
	if pr := second.Phases[PhaseCalculateDerivedScores]; pr.Skipped || !pr.Success {
		t.Fatalf("derived scores did not run: %+v", pr)
	}

	rows, err := h.deps.Metrics.List(h.dbc, testClan, WeekWindow(monday))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := map[string]float64{}
	for _, r := range rows {
		got[r.PlayerTag+"/"+r.MetricName] = r.Value
	}
	if got["#P1/donations_delta"] != 200 || got["#P2/trophies_delta"] != 200 || got["#P1/war_stars_delta"] != 20 {
		t.Fatalf("weekly rows=%v", got)
	}

	latest, err := h.deps.Metrics.List(h.dbc, testClan, types.WindowLatest)
	if err != nil {
		t.Fatalf("List latest: %v", err)
	}
	// 2 members x 4 metrics; the bootstrap run left no tenure evidence
	if len(latest) != 8 {
		t.Fatalf("latest rows=%d, want 8", len(latest))
	}
}

func TestConcurrentRunsForOneClanAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.fetcher.set(rawSnapshot(testClan, date(2025, 1, 8, 4), 0, "#P1", "#P2"), nil)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.run(t, RunOptions{JobID: fmt.Sprintf("job-par-%d", i)})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	snap, err := h.deps.Snapshots.Latest(h.dbc, testClan)
	if err != nil || snap == nil {
		t.Fatalf("Latest: %v %v", snap, err)
	}
	n, _ := h.deps.Stats.CountBySnapshot(h.dbc, snap.ID.String())
	if n != 2 {
		t.Fatalf("stat rows=%d, want 2", n)
	}
}
