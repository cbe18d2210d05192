package clan_ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/pointers"
)

const (
	MetricDonationsDelta            = "donations_delta"
	MetricWarStarsDelta             = "war_stars_delta"
	MetricCapitalContributionsDelta = "capital_contributions_delta"
	MetricTrophiesDelta             = "trophies_delta"
	MetricActivityScore             = "activity_score"
)

var WeeklyMetricNames = []string{
	MetricDonationsDelta,
	MetricWarStarsDelta,
	MetricCapitalContributionsDelta,
	MetricTrophiesDelta,
	MetricActivityScore,
}

// Weekly scores follow the Monday reset.
const weeklyResetDay = time.Monday

// A baseline must be at least this old to count as last week's.
const baselineAge = 6 * day

// activity score targets: a member hitting all three in one week scores 100
const (
	activityDonations = 500.0
	activityWarStars  = 15.0
	activityCapital   = 20000.0
)

// WeekWindow names the metric window of the ISO week containing t.
func WeekWindow(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("week:%d-W%02d", y, w)
}

func (p *Pipeline) calculateDerivedScores(ctx context.Context, jc *jobrt.Context, st *runState) (orchestrator.Outcome, error) {
	dbc := dbctx.Context{Ctx: ctx}
	snap := st.snapshot
	if snap == nil {
		latest, err := p.deps.Snapshots.Latest(dbc, st.clanTag)
		if err != nil {
			return orchestrator.Outcome{}, fmt.Errorf("resolve latest snapshot: %w", err)
		}
		if latest == nil {
			return orchestrator.Outcome{}, fmt.Errorf("%w: no snapshot for %s", apperrors.ErrPhaseInput, st.clanTag)
		}
		snap = latest
	}
	fetchedAt := snap.FetchedAt.UTC()
	if fetchedAt.Weekday() != weeklyResetDay {
		return orchestrator.Outcome{Skipped: true, SkipReason: "not a weekly reset snapshot"}, nil
	}

	baseline, err := p.deps.Snapshots.LatestBefore(dbc, st.clanTag, fetchedAt.Add(-baselineAge))
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("resolve baseline snapshot: %w", err)
	}
	if baseline == nil {
		return orchestrator.Outcome{Skipped: true, SkipReason: "no baseline snapshot"}, nil
	}

	current := st.stats
	if current == nil {
		if current, err = p.deps.Stats.ListBySnapshot(dbc, snap.ID.String()); err != nil {
			return orchestrator.Outcome{}, fmt.Errorf("load current stats: %w", err)
		}
	}
	previous, err := p.deps.Stats.ListBySnapshot(dbc, baseline.ID.String())
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("load baseline stats: %w", err)
	}

	window := WeekWindow(fetchedAt)
	rows := WeeklyScores(st.clanTag, window, snap.ID, current, previous, p.now().UTC())
	written, err := p.deps.Metrics.ReplaceWindow(dbc, st.clanTag, window, WeeklyMetricNames, rows)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("write weekly scores: %w", err)
	}
	jc.Info("weekly scores written", map[string]any{"window": window, "rows": written, "baselineId": baseline.ID.String()})
	return orchestrator.Outcome{
		RowDelta: &written,
		Metadata: map[string]any{
			"window":     window,
			"baselineId": baseline.ID.String(),
		},
	}, nil
}

// WeeklyScores computes week-over-week deltas for members present in both
// snapshots. Season counters (donations) restart at zero, so a negative delta
// is replaced by the current value.
func WeeklyScores(clanTag, window string, snapshotID uuid.UUID, current, previous []*types.MemberSnapshotStat, computedAt time.Time) []*types.DerivedMetric {
	before := make(map[string]*types.MemberSnapshotStat, len(previous))
	for _, s := range previous {
		before[s.PlayerTag] = s
	}
	sid := snapshotID
	var out []*types.DerivedMetric
	add := func(player, name string, v float64) {
		out = append(out, &types.DerivedMetric{
			ClanTag:    clanTag,
			PlayerTag:  player,
			MetricName: name,
			Window:     window,
			Value:      v,
			SnapshotID: &sid,
			ComputedAt: computedAt,
		})
	}

	for _, cur := range current {
		prev, ok := before[cur.PlayerTag]
		if !ok {
			continue
		}
		curE, prevE := decodeEnrichment(cur.Enrichment), decodeEnrichment(prev.Enrichment)

		don := seasonDelta(cur.Donations, prev.Donations)
		stars := lifetimeDelta(enrichInt(curE, warStars), enrichInt(prevE, warStars))
		capital := lifetimeDelta(enrichInt(curE, capitalContrib), enrichInt(prevE, capitalContrib))
		trophies := lifetimeDelta(cur.Trophies, prev.Trophies)

		if don != nil {
			add(cur.PlayerTag, MetricDonationsDelta, float64(*don))
		}
		if stars != nil {
			add(cur.PlayerTag, MetricWarStarsDelta, float64(*stars))
		}
		if capital != nil {
			add(cur.PlayerTag, MetricCapitalContributionsDelta, float64(*capital))
		}
		if trophies != nil {
			add(cur.PlayerTag, MetricTrophiesDelta, float64(*trophies))
		}
		if don == nil && stars == nil && capital == nil {
			continue
		}
		add(cur.PlayerTag, MetricActivityScore, activityScore(don, stars, capital))
	}
	return out
}

func activityScore(don, stars, capital *int) float64 {
	part := func(v *int, target, weight float64) float64 {
		if v == nil || *v <= 0 {
			return 0
		}
		return math.Min(1, float64(*v)/target) * weight
	}
	score := part(don, activityDonations, 40) + part(stars, activityWarStars, 30) + part(capital, activityCapital, 30)
	return math.Round(math.Max(0, math.Min(100, score))*10) / 10
}

func seasonDelta(cur, prev *int) *int {
	if cur == nil || prev == nil {
		return nil
	}
	d := *cur - *prev
	if d < 0 {
		d = *cur
	}
	return pointers.Int(d)
}

func lifetimeDelta(cur, prev *int) *int {
	if cur == nil || prev == nil {
		return nil
	}
	return pointers.Int(*cur - *prev)
}

func warStars(e *types.Enrichment) *int       { return e.WarStars }
func capitalContrib(e *types.Enrichment) *int { return e.CapitalContributions }

func enrichInt(e *types.Enrichment, get func(*types.Enrichment) *int) *int {
	if e == nil {
		return nil
	}
	return get(e)
}
