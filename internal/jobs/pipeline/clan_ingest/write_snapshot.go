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

type snapshotMetadata struct {
	Joiners        []string `json:"joiners,omitempty"`
	DetailCount    int      `json:"detailCount"`
	DetailErrors   int      `json:"detailErrors,omitempty"`
	WarWins        int      `json:"warWins"`
	WarLeague      string   `json:"warLeague,omitempty"`
	CapitalPoints  int      `json:"capitalPoints"`
	RecentWarStars []int    `json:"recentWarStars,omitempty"`
	CapitalLoot    []int    `json:"capitalLoot,omitempty"`
	ArchiveURI     string   `json:"archiveUri,omitempty"`
}

/*
writeSnapshot persists the immutable snapshot row.

A row with the same payload version is reused as is. Otherwise the row owned
by this job (run_id = job id) is rewritten, or a new row is inserted. Retries
of one job therefore always land on the same snapshot id.
*/
func (p *Pipeline) writeSnapshot(ctx context.Context, jc *jobrt.Context, st *runState) (orchestrator.Outcome, error) {
	if st.data == nil || st.raw == nil {
		return orchestrator.Outcome{}, fmt.Errorf("%w: writeSnapshot needs fetch and transform output", apperrors.ErrPhaseInput)
	}
	fetchedAt := st.raw.FetchedAt.UTC()
	memberCount := len(st.data.Members)
	version := PayloadVersion(fetchedAt, memberCount, st.clanTag, SchemaVersion)
	season := p.cfg.Seasons.SeasonFor(fetchedAt)

	meta := snapshotMetadata{
		Joiners:       st.joiners,
		DetailCount:   len(st.raw.PlayerDetails),
		DetailErrors:  len(st.raw.DetailErrors),
		WarWins:       st.data.Clan.WarWins,
		WarLeague:     st.data.Clan.WarLeague,
		CapitalPoints: st.data.Clan.CapitalPoints,
	}
	for _, w := range st.raw.WarLog {
		meta.RecentWarStars = append(meta.RecentWarStars, w.Clan.Stars)
	}
	for _, c := range st.raw.CapitalSeasons {
		meta.CapitalLoot = append(meta.CapitalLoot, c.CapitalTotalLoot)
	}
	meta.ArchiveURI = p.archiveRaw(ctx, jc, st, version)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("encode snapshot metadata: %w", err)
	}

	row := &types.ClanSnapshot{
		ClanTag:            st.clanTag,
		RunID:              st.jobID,
		FetchedAt:          fetchedAt,
		MemberCount:        memberCount,
		PayloadVersion:     version,
		IngestionVersion:   p.cfg.IngestionVersion,
		SchemaVersion:      SchemaVersion,
		SeasonID:           season.ID,
		SeasonStart:        season.Start,
		SeasonEnd:          season.End,
		ClanName:           st.data.Clan.Name,
		ClanLevel:          st.data.Clan.Level,
		ClanPoints:         st.data.Clan.ClanPoints,
		WarLogCount:        len(st.raw.WarLog),
		CapitalSeasonCount: len(st.raw.CapitalSeasons),
		Metadata:           datatypes.JSON(metaJSON),
	}
	snap, created, err := p.deps.Snapshots.UpsertForRun(dbctx.Context{Ctx: ctx}, row)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("write snapshot: %w", err)
	}
	st.snapshot = snap

	var delta int64
	if created {
		delta = 1
	} else if snap.RunID != st.jobID {
		jc.Info("snapshot content unchanged, reusing existing row", map[string]any{
			"snapshotId":     snap.ID.String(),
			"payloadVersion": snap.PayloadVersion,
		})
	}
	return orchestrator.Outcome{
		RowDelta: &delta,
		Metadata: map[string]any{
			"snapshotId":     snap.ID.String(),
			"payloadVersion": snap.PayloadVersion,
			"seasonId":       snap.SeasonID,
			"created":        created,
		},
	}, nil
}

// archiveRaw stores the raw payload when an archive is configured. Failures
// are warnings; the returned URI is empty in that case.
func (p *Pipeline) archiveRaw(ctx context.Context, jc *jobrt.Context, st *runState, version string) string {
	if p.deps.Archive == nil {
		return ""
	}
	body, err := json.Marshal(st.raw)
	if err != nil {
		jc.Warn("raw archive encode failed", map[string]any{"error": err.Error()})
		return ""
	}
	uri, err := p.deps.Archive.ArchiveRaw(ctx, st.clanTag, version, body)
	if err != nil {
		jc.Warn("raw archive failed", map[string]any{"error": err.Error()})
		return ""
	}
	return uri
}
