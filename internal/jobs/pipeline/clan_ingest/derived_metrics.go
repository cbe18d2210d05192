package clan_ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
)

const (
	MetricDonations         = "donations"
	MetricDonationsReceived = "donations_received"
	MetricDonationBalance   = "donation_balance"
	MetricRushPercent       = "rush_percent"
	MetricTenureDays        = "tenure_days"
)

// LatestMetricNames is the full keyspace of the "latest" window. Every run
// prunes all of these names for the clan before writing.
var LatestMetricNames = []string{
	MetricDonations,
	MetricDonationsReceived,
	MetricDonationBalance,
	MetricRushPercent,
	MetricTenureDays,
}

// DerivedMetricsWriter rewrites the "latest" metric window of a clan.
type DerivedMetricsWriter struct {
	repo repos.DerivedMetricRepo
	now  func() time.Time
}

func NewDerivedMetricsWriter(repo repos.DerivedMetricRepo) *DerivedMetricsWriter {
	return &DerivedMetricsWriter{repo: repo, now: time.Now}
}

// WriteLatest prunes the clan's latest window and writes one row per
// computable metric per member. It returns the number of rows written.
func (w *DerivedMetricsWriter) WriteLatest(dbc dbctx.Context, clanTag string, snapshotID uuid.UUID, stats []*types.MemberSnapshotStat) (int64, error) {
	rows := LatestMetrics(clanTag, snapshotID, stats, w.now().UTC())
	return w.repo.ReplaceWindow(dbc, clanTag, types.WindowLatest, LatestMetricNames, rows)
}

// LatestMetrics computes the latest-window rows for stats. Members with no
// computable metric contribute nothing.
func LatestMetrics(clanTag string, snapshotID uuid.UUID, stats []*types.MemberSnapshotStat, computedAt time.Time) []*types.DerivedMetric {
	var out []*types.DerivedMetric
	sid := snapshotID
	add := func(player, name string, v float64) {
		out = append(out, &types.DerivedMetric{
			ClanTag:    clanTag,
			PlayerTag:  player,
			MetricName: name,
			Window:     types.WindowLatest,
			Value:      v,
			SnapshotID: &sid,
			ComputedAt: computedAt,
		})
	}
	for _, s := range stats {
		if s == nil {
			continue
		}
		if s.Donations != nil {
			add(s.PlayerTag, MetricDonations, float64(*s.Donations))
		}
		if s.DonationsReceived != nil {
			add(s.PlayerTag, MetricDonationsReceived, float64(*s.DonationsReceived))
		}
		if s.Donations != nil && s.DonationsReceived != nil {
			add(s.PlayerTag, MetricDonationBalance, float64(*s.Donations-*s.DonationsReceived))
		}
		if s.RushPercent != nil {
			add(s.PlayerTag, MetricRushPercent, *s.RushPercent)
		}
		if s.TenureDays != nil {
			add(s.PlayerTag, MetricTenureDays, float64(*s.TenureDays))
		}
	}
	return out
}
