package clan_ingest

import (
	"time"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
)

func intp(v int) *int { return &v }

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

// playerDetail builds a home-village player with three heroes and the stats
// the enrichment bundle reads.
func playerDetail(tag string, th, warStars, capital int) *gamedata.Player {
	return &gamedata.Player{
		Tag:                      tag,
		Name:                     "detail " + tag,
		TownHallLevel:            intp(th),
		ExpLevel:                 intp(120),
		BestTrophies:             intp(4200),
		WarStars:                 intp(warStars),
		AttackWins:               intp(30),
		DefenseWins:              intp(2),
		ClanCapitalContributions: intp(capital),
		Heroes: []gamedata.Unit{
			{Name: "Barbarian King", Level: 30, MaxLevel: 95, Village: "home"},
			{Name: "Archer Queen", Level: 20, MaxLevel: 95, Village: "home"},
			{Name: "Battle Machine", Level: 25, MaxLevel: 35, Village: "builderBase"},
		},
		Troops: []gamedata.Unit{
			{Name: "Barbarian", Level: 11, MaxLevel: 11, Village: "home"},
			{Name: "Archer", Level: 9, MaxLevel: 11, Village: "home"},
			{Name: "Super Wall Breaker", Level: 7, MaxLevel: 7, Village: "home", SuperTroopIsActive: true},
			{Name: "Unicorn", Level: 5, MaxLevel: 10, Village: "home"},
		},
		Spells: []gamedata.Unit{{Name: "Rage Spell", Level: 6, MaxLevel: 6}},
		Achievements: []gamedata.Achievement{
			{Name: "Friend in Need", Stars: 3, Value: 25000},
			{Name: "Sweet Victory!", Stars: 2, Value: 1800},
		},
	}
}

// rawSnapshot builds a snapshot of clanTag with one member per tag. Every
// member has detail; donations scale with the member index plus bump.
func rawSnapshot(clanTag string, fetchedAt time.Time, bump int, tags ...string) *gamedata.RawSnapshot {
	raw := &gamedata.RawSnapshot{
		ClanTag:   clanTag,
		FetchedAt: fetchedAt,
		Clan: gamedata.Clan{
			Tag:        clanTag,
			Name:       "Test Clan",
			ClanLevel:  12,
			Members:    len(tags),
			ClanPoints: 40000,
			WarWins:    150,
		},
		PlayerDetails: map[string]*gamedata.Player{},
	}
	for i, tag := range tags {
		raw.Members = append(raw.Members, gamedata.ClanMember{
			Tag:               tag,
			Name:              "member " + tag,
			Role:              "member",
			TownHallLevel:     intp(10),
			Trophies:          intp(2000 + i + bump),
			Donations:         intp(100*(i+1) + bump),
			DonationsReceived: intp(50 * (i + 1)),
			LeagueTier:        &gamedata.League{ID: 105000010 + i, Name: "Crystal League II"},
		})
		raw.PlayerDetails[tag] = playerDetail(tag, 10, 300+bump/10, 10000+bump*10)
	}
	return raw
}
