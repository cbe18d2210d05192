package clan_ingest

import (
	"context"
	"fmt"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/orchestrator"
	jobrt "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/runtime"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
)

func (p *Pipeline) transform(ctx context.Context, jc *jobrt.Context, st *runState) (orchestrator.Outcome, error) {
	if st.raw == nil {
		return orchestrator.Outcome{}, fmt.Errorf("%w: transform needs fetch output", apperrors.ErrPhaseInput)
	}
	tags := rawMemberTags(st.raw)
	book, err := p.loadTenureBook(dbctx.Context{Ctx: ctx}, st.clanTag, tags, st.snapshotDay())
	if err != nil {
		// members still transform, with nil tenure
		jc.Warn("tenure lookup failed", map[string]any{"error": err.Error()})
	}
	st.data = Transform(st.raw, book)

	var withTenure, withRush int
	for _, m := range st.data.Members {
		if m.Tenure != nil {
			withTenure++
		}
		if m.RushPercent != nil {
			withRush++
		}
	}
	rows := int64(len(st.data.Members))
	return orchestrator.Outcome{
		RowDelta: &rows,
		Metadata: map[string]any{
			"memberCount": len(st.data.Members),
			"withTenure":  withTenure,
			"withRush":    withRush,
		},
	}, nil
}

// Transform normalizes a raw snapshot. It performs no I/O and never fails:
// anything that cannot be resolved is left nil.
func Transform(raw *gamedata.RawSnapshot, book TenureBook) *Transformed {
	out := &Transformed{}
	if raw == nil {
		return out
	}
	c := raw.Clan
	out.Clan = ClanData{
		Tag:           gamedata.NormalizeTag(firstNonEmpty(c.Tag, raw.ClanTag)),
		Name:          c.Name,
		Level:         c.ClanLevel,
		Description:   c.Description,
		BadgeURL:      firstNonEmpty(c.BadgeURLs.Large, c.BadgeURLs.Medium, c.BadgeURLs.Small),
		MemberCount:   c.Members,
		ClanPoints:    c.ClanPoints,
		CapitalPoints: c.CapitalPoints,
		WarWins:       c.WarWins,
		WarWinStreak:  c.WarWinStreak,
	}
	if c.WarLeague != nil {
		out.Clan.WarLeague = c.WarLeague.Name
	}
	if c.ClanCapital != nil {
		out.Clan.CapitalHallLevel = c.ClanCapital.CapitalHallLevel
	}

	target := dayOf(raw.FetchedAt)
	seen := map[string]bool{}
	for _, m := range rawMembers(raw) {
		tag := gamedata.NormalizeTag(m.Tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		detail := raw.PlayerDetails[tag]

		md := MemberData{
			Tag:             tag,
			Name:            m.Name,
			Role:            m.Role,
			TownHallLevel:   m.TownHallLevel,
			ExpLevel:        m.ExpLevel,
			Trophies:        m.Trophies,
			BuilderTrophies: m.BuilderBaseTrophies,
			League:          resolveLeague(m, detail),
			Heroes:          heroLevels(detail),
			Detail:          detail,
		}
		if detail != nil {
			if md.Name == "" {
				md.Name = detail.Name
			}
			if md.TownHallLevel == nil {
				md.TownHallLevel = detail.TownHallLevel
			}
			if md.ExpLevel == nil {
				md.ExpLevel = detail.ExpLevel
			}
			if md.Trophies == nil {
				md.Trophies = detail.Trophies
			}
			if md.BuilderTrophies == nil {
				md.BuilderTrophies = detail.BuilderBaseTrophies
			}
		}
		md.Donations, md.DonationsReceived = resolveDonations(m, detail)
		md.RushPercent = RushPercent(md.TownHallLevel, md.Heroes)
		md.Tenure = book.Resolve(tag, target)
		out.Members = append(out.Members, md)
	}
	if out.Clan.MemberCount == 0 {
		out.Clan.MemberCount = len(out.Members)
	}
	return out
}

func rawMembers(raw *gamedata.RawSnapshot) []gamedata.ClanMember {
	if len(raw.Members) > 0 {
		return raw.Members
	}
	return raw.Clan.MemberList
}

func rawMemberTags(raw *gamedata.RawSnapshot) []string {
	members := rawMembers(raw)
	tags := make([]string, 0, len(members))
	for _, m := range members {
		if tag := gamedata.NormalizeTag(m.Tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
