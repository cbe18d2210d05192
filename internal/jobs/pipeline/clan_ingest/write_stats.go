package clan_ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
)

/*
writeStats rewrites the per-member history of the snapshot.

The stat rows of the snapshot are deleted and re-inserted in one transaction,
then the latest metric window and the canonical projection are rebuilt from
the same rows. Running it twice with the same input leaves the same rows.
*/
func (p *Pipeline) writeStats(ctx context.Context, jc *jobrt.Context, st *runState) (orchestrator.Outcome, error) {
	if st.data == nil {
		return orchestrator.Outcome{}, fmt.Errorf("%w: writeStats needs transform output", apperrors.ErrPhaseInput)
	}
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
		jc.Warn("writeSnapshot output missing, using latest snapshot", map[string]any{"snapshotId": latest.ID.String()})
		snap = latest
		st.snapshot = latest
	}
	target := dayOf(snap.FetchedAt)

	tags := make([]string, 0, len(st.data.Members))
	for _, m := range st.data.Members {
		tags = append(tags, m.Tag)
	}
	book, err := p.loadTenureBook(dbc, st.clanTag, tags, target)
	if err != nil {
		jc.Warn("tenure lookup failed", map[string]any{"error": err.Error()})
	}

	stats := make([]*types.MemberSnapshotStat, 0, len(st.data.Members))
	enrich := make(map[string]*types.Enrichment, len(st.data.Members))
	for i := range st.data.Members {
		m := &st.data.Members[i]
		tenure := book.Resolve(m.Tag, target)
		if tenure == nil {
			tenure = m.Tenure
		}
		row, e, err := statRowFrom(snap, m, tenure)
		if err != nil {
			return orchestrator.Outcome{}, err
		}
		stats = append(stats, row)
		enrich[m.Tag] = e
	}

	inserted, err := p.deps.Stats.ReplaceForSnapshot(dbc, snap.ID.String(), stats)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("replace member stats: %w", err)
	}
	st.stats = stats

	metricRows, err := p.metrics.WriteLatest(dbc, st.clanTag, snap.ID, stats)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("write derived metrics: %w", err)
	}

	canon, err := buildCanonical(snap, stats, enrich)
	if err != nil {
		return orchestrator.Outcome{}, err
	}
	canonRows, err := p.deps.Canonical.ReplaceForSnapshot(dbc, snap.ID.String(), canon)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("replace canonical snapshots: %w", err)
	}

	return orchestrator.Outcome{
		RowDelta: &inserted,
		Metadata: map[string]any{
			"snapshotId":     snap.ID.String(),
			"statRows":       inserted,
			"derivedMetrics": metricRows,
			"canonicalRows":  canonRows,
		},
	}, nil
}

func statRowFrom(snap *types.ClanSnapshot, m *MemberData, tenure *Tenure) (*types.MemberSnapshotStat, *types.Enrichment, error) {
	row := &types.MemberSnapshotStat{
		SnapshotID:        snap.ID,
		ClanTag:           snap.ClanTag,
		PlayerTag:         m.Tag,
		Name:              m.Name,
		Role:              m.Role,
		TownHallLevel:     m.TownHallLevel,
		Trophies:          m.Trophies,
		BuilderTrophies:   m.BuilderTrophies,
		LeagueName:        m.League.Name,
		RankedLeagueName:  m.League.RankedName,
		Donations:         m.Donations,
		DonationsReceived: m.DonationsReceived,
		HeroLevels:        m.Heroes,
		RushPercent:       m.RushPercent,
	}
	if tenure != nil {
		days, asOf := tenure.Days, tenure.AsOf
		row.TenureDays = &days
		row.TenureAsOf = &asOf
	}
	e := buildEnrichment(m.Detail)
	if e != nil {
		body, err := json.Marshal(e)
		if err != nil {
			return nil, nil, fmt.Errorf("encode enrichment %s: %w", m.Tag, err)
		}
		row.Enrichment = datatypes.JSON(body)
	}
	return row, e, nil
}

func decodeEnrichment(raw datatypes.JSON) *types.Enrichment {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var e types.Enrichment
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil
	}
	return &e
}
