package clan_ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
)

/*
upsertMembers writes the clan row and one row per member.

Before the upsert it diffs incoming tags against the stored member set. Each
new tag gets a joiner event and a one-day tenure anchor, both keyed on the
snapshot's UTC day, so a repeated run for the same day writes nothing new.
The first run for a clan (no stored members) is a bootstrap and records no
joiners.
*/
func (p *Pipeline) upsertMembers(ctx context.Context, jc *jobrt.Context, st *runState) (orchestrator.Outcome, error) {
	if st.data == nil {
		return orchestrator.Outcome{}, fmt.Errorf("%w: upsertMembers needs transform output", apperrors.ErrPhaseInput)
	}
	dbc := dbctx.Context{Ctx: ctx}
	day := st.snapshotDay()

	existing, err := p.deps.Members.ListTags(dbc, st.clanTag)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("list member tags: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t] = true
	}
	bootstrap := len(existing) == 0

	var joiners []string
	if !bootstrap {
		joiners = newTags(known, st.data.Members)
	}
	st.joiners = joiners

	var recorded, seeded int64
	if len(joiners) > 0 {
		recorded, seeded, err = p.recordJoiners(dbc, st, joiners, day)
		if err != nil {
			return orchestrator.Outcome{}, err
		}
		jc.Info("new members detected", map[string]any{"tags": joiners, "recorded": recorded})
	}

	clanRow := clanRowFrom(st)
	memberRows := make([]*types.Member, 0, len(st.data.Members))
	for i := range st.data.Members {
		memberRows = append(memberRows, memberRowFrom(st.clanTag, &st.data.Members[i], st.fetchedAt))
	}

	var upserted int64
	err = p.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := p.deps.Clans.Upsert(txc, clanRow); err != nil {
			return fmt.Errorf("upsert clan: %w", err)
		}
		n, err := p.deps.Members.Upsert(txc, memberRows)
		if err != nil {
			return fmt.Errorf("upsert members: %w", err)
		}
		upserted = n
		return nil
	})
	if err != nil {
		return orchestrator.Outcome{}, err
	}

	return orchestrator.Outcome{
		RowDelta: &upserted,
		Metadata: map[string]any{
			"members":         len(memberRows),
			"joiners":         len(joiners),
			"joinerEvents":    recorded,
			"tenureSeeds":     seeded,
			"bootstrap":       bootstrap,
			"previousMembers": len(existing),
		},
	}, nil
}

func newTags(known map[string]bool, members []MemberData) []string {
	var out []string
	for _, m := range members {
		if !known[m.Tag] {
			out = append(out, m.Tag)
		}
	}
	sort.Strings(out)
	return out
}

// recordJoiners writes joiner events and tenure seeds for tags and marks the
// joiners' in-memory tenure as day one.
func (p *Pipeline) recordJoiners(dbc dbctx.Context, st *runState, tags []string, day time.Time) (int64, int64, error) {
	names := make(map[string]string, len(st.data.Members))
	for _, m := range st.data.Members {
		names[m.Tag] = m.Name
	}
	events := make([]*types.JoinerEvent, 0, len(tags))
	seeds := make([]*types.TenureEntry, 0, len(tags))
	for _, tag := range tags {
		events = append(events, &types.JoinerEvent{
			ClanTag:    st.clanTag,
			PlayerTag:  tag,
			PlayerName: names[tag],
			DetectedAt: day,
		})
		seeds = append(seeds, &types.TenureEntry{
			ClanTag:   st.clanTag,
			PlayerTag: tag,
			AsOf:      day,
			BaseDays:  1,
			Source:    types.TenureSourceJoiner,
		})
	}
	recorded, err := p.deps.Joiners.RecordJoiners(dbc, events)
	if err != nil {
		return 0, 0, fmt.Errorf("record joiners: %w", err)
	}
	seeded, err := p.deps.Tenure.SeedEntries(dbc, seeds)
	if err != nil {
		return recorded, 0, fmt.Errorf("seed tenure: %w", err)
	}

	isJoiner := make(map[string]bool, len(tags))
	for _, t := range tags {
		isJoiner[t] = true
	}
	for i := range st.data.Members {
		m := &st.data.Members[i]
		if isJoiner[m.Tag] && m.Tenure == nil {
			m.Tenure = &Tenure{Days: 1, AsOf: day}
		}
	}
	return recorded, seeded, nil
}

func clanRowFrom(st *runState) *types.Clan {
	c := st.data.Clan
	fetched := st.fetchedAt
	return &types.Clan{
		Tag:              st.clanTag,
		Name:             c.Name,
		Level:            c.Level,
		Description:      c.Description,
		BadgeURL:         c.BadgeURL,
		MemberCount:      c.MemberCount,
		ClanPoints:       c.ClanPoints,
		CapitalPoints:    c.CapitalPoints,
		WarWins:          c.WarWins,
		WarWinStreak:     c.WarWinStreak,
		WarLeague:        c.WarLeague,
		CapitalHallLevel: c.CapitalHallLevel,
		LastSnapshotAt:   &fetched,
	}
}

func memberRowFrom(clanTag string, m *MemberData, seenAt time.Time) *types.Member {
	row := &types.Member{
		ClanTag:           clanTag,
		Tag:               m.Tag,
		Name:              m.Name,
		Role:              m.Role,
		TownHallLevel:     m.TownHallLevel,
		ExpLevel:          m.ExpLevel,
		Trophies:          m.Trophies,
		BuilderTrophies:   m.BuilderTrophies,
		LeagueID:          m.League.ID,
		LeagueName:        m.League.Name,
		RankedLeagueID:    m.League.RankedID,
		RankedLeagueName:  m.League.RankedName,
		Donations:         m.Donations,
		DonationsReceived: m.DonationsReceived,
		HeroLevels:        m.Heroes,
		RushPercent:       m.RushPercent,
		LastSeenAt:        seenAt,
	}
	if m.Tenure != nil {
		days, asOf := m.Tenure.Days, m.Tenure.AsOf
		row.TenureDays = &days
		row.TenureAsOf = &asOf
	}
	return row
}
