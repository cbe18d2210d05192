package clan_ingest

import (
	"context"
	"fmt"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
)

func (p *Pipeline) fetch(ctx context.Context, jc *jobrt.Context, st *runState) (orchestrator.Outcome, error) {
	raw, err := p.deps.Fetcher.FetchClanSnapshot(ctx, st.clanTag)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("fetch clan snapshot: %w", err)
	}
	if raw == nil {
		return orchestrator.Outcome{}, fmt.Errorf("fetch clan snapshot: empty response")
	}
	if raw.FetchedAt.IsZero() {
		raw.FetchedAt = st.fetchedAt
	}
	raw.FetchedAt = raw.FetchedAt.UTC()
	st.raw = raw
	st.fetchedAt = raw.FetchedAt

	rows := int64(len(raw.Members))
	meta := map[string]any{
		"memberCount":        len(raw.Members),
		"detailCount":        len(raw.PlayerDetails),
		"warLogCount":        len(raw.WarLog),
		"capitalSeasonCount": len(raw.CapitalSeasons),
		"fetchedAt":          raw.FetchedAt,
	}
	if n := len(raw.DetailErrors); n > 0 {
		meta["detailErrors"] = n
		jc.Warn("member detail incomplete", map[string]any{"errors": n, "first": raw.DetailErrors[0]})
	}
	return orchestrator.Outcome{RowDelta: &rows, Metadata: meta}, nil
}
