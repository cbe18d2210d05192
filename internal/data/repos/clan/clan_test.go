package clan

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos/testutil"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
)

func TestClanAndMemberUpsert(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	clans := NewClanRepo(db, log)
	members := NewMemberRepo(db, log)

	if err := clans.Upsert(dbc, &types.Clan{Tag: "#2PR8R8V8P", Name: "Home", Level: 10}); err != nil {
		t.Fatalf("Upsert clan: %v", err)
	}
	if err := clans.Upsert(dbc, &types.Clan{Tag: "#2PR8R8V8P", Name: "Home Renamed", Level: 11}); err != nil {
		t.Fatalf("Upsert clan again: %v", err)
	}
	got, err := clans.GetByTag(dbc, "#2PR8R8V8P")
	if err != nil || got == nil {
		t.Fatalf("GetByTag: got=%v err=%v", got, err)
	}
	if got.Name != "Home Renamed" || got.Level != 11 {
		t.Fatalf("clan not last-write-wins: %+v", got)
	}

	first := time.Date(2025, 1, 6, 4, 0, 0, 0, time.UTC)
	second := first.Add(12 * time.Hour)
	if _, err := members.Upsert(dbc, []*types.Member{
		{ClanTag: "#2PR8R8V8P", Tag: "#AAA", Name: "a", Donations: testutil.PtrInt(5), LastSeenAt: first},
		{ClanTag: "#2PR8R8V8P", Tag: "#BBB", Name: "b", LastSeenAt: first},
	}); err != nil {
		t.Fatalf("Upsert members: %v", err)
	}
	n, err := members.Upsert(dbc, []*types.Member{
		{ClanTag: "#2PR8R8V8P", Tag: "#AAA", Name: "a2", Donations: testutil.PtrInt(9), LastSeenAt: second},
	})
	if err != nil || n != 1 {
		t.Fatalf("Upsert members again: n=%d err=%v", n, err)
	}

	tags, err := members.ListTags(dbc, "#2PR8R8V8P")
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if diff := cmp.Diff([]string{"#AAA", "#BBB"}, tags); diff != "" {
		t.Fatalf("ListTags mismatch (-want +got):\n%s", diff)
	}

	rows, err := members.ListByClan(dbc, "#2PR8R8V8P")
	if err != nil {
		t.Fatalf("ListByClan: %v", err)
	}
	a := rows[0]
	if a.Name != "a2" || a.Donations == nil || *a.Donations != 9 {
		t.Fatalf("member not updated: %+v", a)
	}
	if !a.FirstSeenAt.Equal(first) {
		t.Fatalf("first_seen_at overwritten: got %v want %v", a.FirstSeenAt, first)
	}
	if !a.LastSeenAt.Equal(second) {
		t.Fatalf("last_seen_at: got %v want %v", a.LastSeenAt, second)
	}
}

func TestSnapshotUpsertForRun(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewSnapshotRepo(db, testutil.Logger(t))

	fetched := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)
	mk := func(run, version string, at time.Time) *types.ClanSnapshot {
		return &types.ClanSnapshot{
			ClanTag:          "#CLAN",
			RunID:            run,
			FetchedAt:        at,
			MemberCount:      3,
			PayloadVersion:   version,
			IngestionVersion: "test",
			SchemaVersion:    1,
			SeasonID:         "2025-03",
			SeasonStart:      at,
			SeasonEnd:        at,
		}
	}

	s1, created, err := repo.UpsertForRun(dbc, mk("run-1", "v1", fetched))
	if err != nil || !created {
		t.Fatalf("first UpsertForRun: created=%v err=%v", created, err)
	}

	// Retry of the same run with a different fingerprint rewrites the row.
	s1b, created, err := repo.UpsertForRun(dbc, mk("run-1", "v1b", fetched.Add(time.Minute)))
	if err != nil || created {
		t.Fatalf("retry UpsertForRun: created=%v err=%v", created, err)
	}
	if s1b.ID != s1.ID || s1b.PayloadVersion != "v1b" {
		t.Fatalf("retry did not rewrite in place: %v/%s vs %v", s1b.ID, s1b.PayloadVersion, s1.ID)
	}

	// Another run with identical content reuses the existing row.
	dup, created, err := repo.UpsertForRun(dbc, mk("run-2", "v1b", fetched.Add(2*time.Minute)))
	if err != nil || created {
		t.Fatalf("dup UpsertForRun: created=%v err=%v", created, err)
	}
	if dup.ID != s1.ID {
		t.Fatalf("dup should reuse snapshot %v, got %v", s1.ID, dup.ID)
	}

	later, _, err := repo.UpsertForRun(dbc, mk("run-3", "v2", fetched.Add(24*time.Hour)))
	if err != nil {
		t.Fatalf("later UpsertForRun: %v", err)
	}

	var count int64
	db.Model(&types.ClanSnapshot{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 snapshots, got %d", count)
	}

	latest, err := repo.Latest(dbc, "#CLAN")
	if err != nil || latest == nil || latest.ID != later.ID {
		t.Fatalf("Latest: got=%v err=%v", latest, err)
	}
	prev, err := repo.LatestBefore(dbc, "#CLAN", later.FetchedAt)
	if err != nil || prev == nil || prev.ID != s1.ID {
		t.Fatalf("LatestBefore: got=%v err=%v", prev, err)
	}
	if none, err := repo.GetByPayloadVersion(dbc, "#CLAN", "nope"); err != nil || none != nil {
		t.Fatalf("GetByPayloadVersion missing: got=%v err=%v", none, err)
	}
	if byRun, err := repo.GetByRunID(dbc, "#CLAN", "run-3"); err != nil || byRun == nil || byRun.ID != later.ID {
		t.Fatalf("GetByRunID: got=%v err=%v", byRun, err)
	}
}

func TestMemberStatReplaceIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewMemberStatRepo(db, testutil.Logger(t))

	snapshotID := "6f1c7c55-2b5f-4a43-9e1e-3b8f0a3f8d10"
	build := func() []*types.MemberSnapshotStat {
		rows := make([]*types.MemberSnapshotStat, 0, 50)
		for i := 0; i < 50; i++ {
			rows = append(rows, &types.MemberSnapshotStat{
				SnapshotID: mustUUID(t, snapshotID),
				ClanTag:    "#CLAN",
				PlayerTag:  fmt.Sprintf("#P%02d", i),
				Name:       fmt.Sprintf("player %d", i),
			})
		}
		return rows
	}

	for i := 0; i < 2; i++ {
		n, err := repo.ReplaceForSnapshot(dbc, snapshotID, build())
		if err != nil {
			t.Fatalf("ReplaceForSnapshot #%d: %v", i, err)
		}
		if n != 50 {
			t.Fatalf("ReplaceForSnapshot #%d: inserted %d", i, n)
		}
	}
	count, err := repo.CountBySnapshot(dbc, snapshotID)
	if err != nil {
		t.Fatalf("CountBySnapshot: %v", err)
	}
	if count != 50 {
		t.Fatalf("expected 50 rows after two writes, got %d", count)
	}
}

func TestDerivedMetricReplaceWindow(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewDerivedMetricRepo(db, testutil.Logger(t))
	now := time.Now().UTC()

	names := []string{"donations", "tenure_days"}
	if _, err := repo.ReplaceWindow(dbc, "#CLAN", types.WindowLatest, names, []*types.DerivedMetric{
		{ClanTag: "#CLAN", PlayerTag: "#A", MetricName: "donations", Window: types.WindowLatest, Value: 10, ComputedAt: now},
		{ClanTag: "#CLAN", PlayerTag: "#B", MetricName: "donations", Window: types.WindowLatest, Value: 3, ComputedAt: now},
		{ClanTag: "#CLAN", PlayerTag: "#A", MetricName: "tenure_days", Window: types.WindowLatest, Value: 40, ComputedAt: now},
	}); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}
	if _, err := repo.ReplaceWindow(dbc, "#CLAN", "week:2025-W10", []string{"activity_score"}, []*types.DerivedMetric{
		{ClanTag: "#CLAN", PlayerTag: "#A", MetricName: "activity_score", Window: "week:2025-W10", Value: 7, ComputedAt: now},
	}); err != nil {
		t.Fatalf("ReplaceWindow week: %v", err)
	}

	// #B left the clan; its latest rows must disappear.
	if _, err := repo.ReplaceWindow(dbc, "#CLAN", types.WindowLatest, names, []*types.DerivedMetric{
		{ClanTag: "#CLAN", PlayerTag: "#A", MetricName: "donations", Window: types.WindowLatest, Value: 12, ComputedAt: now},
	}); err != nil {
		t.Fatalf("ReplaceWindow again: %v", err)
	}

	latest, err := repo.List(dbc, "#CLAN", types.WindowLatest)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(latest) != 1 || latest[0].PlayerTag != "#A" || latest[0].Value != 12 {
		t.Fatalf("unexpected latest window: %+v", latest)
	}
	weekly, err := repo.List(dbc, "#CLAN", "week:2025-W10")
	if err != nil || len(weekly) != 1 {
		t.Fatalf("other windows must be untouched: rows=%d err=%v", len(weekly), err)
	}
}

func TestJoinerAndTenureSingleFire(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	log := testutil.Logger(t)
	joiners := NewJoinerRepo(db, log)
	tenure := NewTenureRepo(db, log)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		n, err := joiners.RecordJoiners(dbc, []*types.JoinerEvent{
			{ClanTag: "#CLAN", PlayerTag: "#ABC123", PlayerName: "new", DetectedAt: day},
		})
		if err != nil {
			t.Fatalf("RecordJoiners #%d: %v", i, err)
		}
		if want := int64(1 - i); n != want {
			t.Fatalf("RecordJoiners #%d: inserted %d want %d", i, n, want)
		}
		if _, err := tenure.SeedEntries(dbc, []*types.TenureEntry{
			{ClanTag: "#CLAN", PlayerTag: "#ABC123", AsOf: day, BaseDays: 1},
		}); err != nil {
			t.Fatalf("SeedEntries #%d: %v", i, err)
		}
	}

	events, err := joiners.ListByClan(dbc, "#CLAN")
	if err != nil || len(events) != 1 {
		t.Fatalf("expected one joiner event, got %d err=%v", len(events), err)
	}
	joined, err := joiners.LatestJoinByTags(dbc, "#CLAN", []string{"#ABC123", "#OTHER"}, day.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("LatestJoinByTags: %v", err)
	}
	if got, ok := joined["#ABC123"]; !ok || !got.Equal(day) || len(joined) != 1 {
		t.Fatalf("LatestJoinByTags: %v", joined)
	}
	if before, _ := joiners.LatestJoinByTags(dbc, "#CLAN", []string{"#ABC123"}, day.Add(-time.Hour)); len(before) != 0 {
		t.Fatalf("join after asOf must be ignored: %v", before)
	}

	entries, err := tenure.ListForTags(dbc, "#CLAN", []string{"#ABC123"})
	if err != nil {
		t.Fatalf("ListForTags: %v", err)
	}
	if len(entries["#ABC123"]) != 1 || entries["#ABC123"][0].Source != types.TenureSourceJoiner {
		t.Fatalf("unexpected tenure entries: %+v", entries)
	}
}

func TestMemberUpsertKeepsTenureWhenUnresolved(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	members := NewMemberRepo(db, testutil.Logger(t))

	seen := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)
	if _, err := members.Upsert(dbc, []*types.Member{
		{ClanTag: "#CLAN", Tag: "#P1", Name: "one", TenureDays: testutil.PtrInt(100), TenureAsOf: testutil.PtrTime(seen), LastSeenAt: seen},
		{ClanTag: "#CLAN", Tag: "#P2", Name: "two", TenureDays: testutil.PtrInt(100), TenureAsOf: testutil.PtrTime(seen), LastSeenAt: seen},
	}); err != nil {
		t.Fatalf("seed members: %v", err)
	}

	later := seen.Add(24 * time.Hour)
	if _, err := members.Upsert(dbc, []*types.Member{
		{ClanTag: "#CLAN", Tag: "#P1", Name: "one", LastSeenAt: later},
		{ClanTag: "#CLAN", Tag: "#P2", Name: "two", TenureDays: testutil.PtrInt(3), TenureAsOf: testutil.PtrTime(later), LastSeenAt: later},
	}); err != nil {
		t.Fatalf("Upsert members: %v", err)
	}

	rows, err := members.ListByClan(dbc, "#CLAN")
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByClan: rows=%d err=%v", len(rows), err)
	}
	if p1 := rows[0]; p1.TenureDays == nil || *p1.TenureDays != 100 || p1.TenureAsOf == nil || !p1.TenureAsOf.Equal(seen) {
		t.Fatalf("#P1 tenure overwritten by an unresolved run: %v/%v", p1.TenureDays, p1.TenureAsOf)
	}
	if p2 := rows[1]; p2.TenureDays == nil || *p2.TenureDays != 3 {
		t.Fatalf("#P2 tenure = %v, want 3", p2.TenureDays)
	}
	if !rows[0].LastSeenAt.Equal(later) {
		t.Fatalf("last_seen_at not updated: %v", rows[0].LastSeenAt)
	}
}

func TestCanonicalReplaceDropsDepartedMembers(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewCanonicalRepo(db, testutil.Logger(t))

	snapshotID := "0b7d4f1e-53a2-4c1b-8f7e-2d9c6a1e4b20"
	fetched := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)
	build := func(tags ...string) []*types.CanonicalMemberSnapshot {
		rows := make([]*types.CanonicalMemberSnapshot, 0, len(tags))
		for _, tag := range tags {
			rows = append(rows, &types.CanonicalMemberSnapshot{
				SnapshotID:     mustUUID(t, snapshotID),
				ClanTag:        "#CLAN",
				PlayerTag:      tag,
				FetchedAt:      fetched,
				PayloadVersion: "v1",
				SchemaVersion:  1,
				Payload:        []byte(`{"tag":"` + tag + `"}`),
			})
		}
		return rows
	}

	if n, err := repo.ReplaceForSnapshot(dbc, snapshotID, build("#P1", "#P2", "#P3")); err != nil || n != 3 {
		t.Fatalf("first ReplaceForSnapshot: n=%d err=%v", n, err)
	}
	if n, err := repo.ReplaceForSnapshot(dbc, snapshotID, build("#P1", "#P2")); err != nil || n != 2 {
		t.Fatalf("retry ReplaceForSnapshot: n=%d err=%v", n, err)
	}

	rows, err := repo.ListBySnapshot(dbc, snapshotID)
	if err != nil {
		t.Fatalf("ListBySnapshot: %v", err)
	}
	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, r.PlayerTag)
	}
	if diff := cmp.Diff([]string{"#P1", "#P2"}, got); diff != "" {
		t.Fatalf("canonical rows (-want +got):\n%s", diff)
	}
}
