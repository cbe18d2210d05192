package clan_ingest

import (
	"strings"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
)

// Nothing here may fail: absent detail yields nil fields.

const (
	heroBarbarianKing = "Barbarian King"
	heroArcherQueen   = "Archer Queen"
	heroMinionPrince  = "Minion Prince"
	heroGrandWarden   = "Grand Warden"
	heroRoyalChampion = "Royal Champion"

	achievementFriendInNeed = "Friend in Need"

	villageHome = "home"
)

type leagueFields struct {
	ID         *int
	Name       string
	RankedID   *int
	RankedName string
}

// resolveLeague prefers the ranked leagueTier shape over the legacy league
// shape, member list first, then player detail.
func resolveLeague(m gamedata.ClanMember, p *gamedata.Player) leagueFields {
	var out leagueFields
	tier := m.LeagueTier
	legacy := m.League
	if p != nil {
		if tier == nil {
			tier = p.LeagueTier
		}
		if legacy == nil {
			legacy = p.League
		}
	}
	if tier != nil {
		id := tier.ID
		out.RankedID = &id
		out.RankedName = tier.Name
	}
	switch {
	case tier != nil:
		id := tier.ID
		out.ID = &id
		out.Name = tier.Name
	case legacy != nil:
		id := legacy.ID
		out.ID = &id
		out.Name = legacy.Name
	}
	return out
}

// resolveDonations takes the member list values, then player detail, then the
// lifetime donation achievement for the given side.
func resolveDonations(m gamedata.ClanMember, p *gamedata.Player) (given, received *int) {
	given, received = m.Donations, m.DonationsReceived
	if p == nil {
		return given, received
	}
	if given == nil {
		given = p.Donations
	}
	if received == nil {
		received = p.DonationsReceived
	}
	if given == nil {
		if a := findAchievement(p, achievementFriendInNeed); a != nil {
			v := a.Value
			given = &v
		}
	}
	return given, received
}

func findAchievement(p *gamedata.Player, name string) *gamedata.Achievement {
	if p == nil {
		return nil
	}
	for i := range p.Achievements {
		if strings.EqualFold(p.Achievements[i].Name, name) {
			return &p.Achievements[i]
		}
	}
	return nil
}

func heroLevels(p *gamedata.Player) types.HeroLevels {
	var h types.HeroLevels
	if p == nil {
		return h
	}
	for _, hero := range p.Heroes {
		if hero.Village != "" && hero.Village != villageHome {
			continue
		}
		lvl := hero.Level
		switch hero.Name {
		case heroBarbarianKing:
			h.BarbarianKing = &lvl
		case heroArcherQueen:
			h.ArcherQueen = &lvl
		case heroMinionPrince:
			h.MinionPrince = &lvl
		case heroGrandWarden:
			h.GrandWarden = &lvl
		case heroRoyalChampion:
			h.RoyalChampion = &lvl
		}
	}
	return h
}

var petNames = map[string]bool{
	"L.A.S.S.I": true, "Electro Owl": true, "Mighty Yak": true, "Unicorn": true,
	"Frosty": true, "Diggy": true, "Poison Lizard": true, "Phoenix": true,
	"Spirit Fox": true, "Angry Jelly": true, "Sneezy": true,
}

// buildEnrichment extracts the optional detail bundle stored with a stat row.
// It returns nil when there is no detail at all.
func buildEnrichment(p *gamedata.Player) *types.Enrichment {
	if p == nil {
		return nil
	}
	e := &types.Enrichment{
		BuilderHallLevel:        p.BuilderHallLevel,
		BuilderBaseTrophies:     p.BuilderBaseTrophies,
		BestBuilderBaseTrophies: p.BestBuilderBaseTrophies,
		WarStars:                p.WarStars,
		AttackWins:              p.AttackWins,
		DefenseWins:             p.DefenseWins,
		CapitalContributions:    p.ClanCapitalContributions,
		ExpLevel:                p.ExpLevel,
		BestTrophies:            p.BestTrophies,
	}

	var maxTroops, maxSpells int
	for _, t := range p.Troops {
		if petNames[t.Name] {
			if e.PetLevels == nil {
				e.PetLevels = map[string]int{}
			}
			e.PetLevels[t.Name] = t.Level
			continue
		}
		if t.Village != "" && t.Village != villageHome {
			continue
		}
		if t.SuperTroopIsActive {
			e.SuperTroopsActive = append(e.SuperTroopsActive, t.Name)
		}
		if t.MaxLevel > 0 && t.Level >= t.MaxLevel {
			maxTroops++
		}
	}
	for _, s := range p.Spells {
		if s.MaxLevel > 0 && s.Level >= s.MaxLevel {
			maxSpells++
		}
	}
	if len(p.Troops) > 0 {
		e.MaxTroopCount = &maxTroops
	}
	if len(p.Spells) > 0 {
		e.MaxSpellCount = &maxSpells
	}

	if len(p.Achievements) > 0 {
		count := len(p.Achievements)
		score := 0
		for _, a := range p.Achievements {
			score += a.Stars
		}
		e.AchievementCount = &count
		e.AchievementScore = &score
	}
	if e.CapitalContributions == nil {
		if a := findAchievement(p, "Most Valuable Clanmate"); a != nil {
			v := a.Value
			e.CapitalContributions = &v
		}
	}

	for _, eq := range p.HeroEquipment {
		if e.EquipmentLevels == nil {
			e.EquipmentLevels = map[string]int{}
		}
		e.EquipmentLevels[eq.Name] = eq.Level
	}
	return e
}
