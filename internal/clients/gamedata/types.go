package gamedata

import "time"

type League struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type BadgeURLs struct {
	Small  string `json:"small,omitempty"`
	Medium string `json:"medium,omitempty"`
	Large  string `json:"large,omitempty"`
}

type ClanCapital struct {
	CapitalHallLevel *int `json:"capitalHallLevel,omitempty"`
}

// ClanMember is one entry of the clan member list. LeagueTier is the newer
// ranked shape and may be absent on older payloads.
type ClanMember struct {
	Tag                 string  `json:"tag"`
	Name                string  `json:"name"`
	Role                string  `json:"role,omitempty"`
	TownHallLevel       *int    `json:"townHallLevel,omitempty"`
	ExpLevel            *int    `json:"expLevel,omitempty"`
	Trophies            *int    `json:"trophies,omitempty"`
	BuilderBaseTrophies *int    `json:"builderBaseTrophies,omitempty"`
	League              *League `json:"league,omitempty"`
	LeagueTier          *League `json:"leagueTier,omitempty"`
	Donations           *int    `json:"donations,omitempty"`
	DonationsReceived   *int    `json:"donationsReceived,omitempty"`
}

type Clan struct {
	Tag           string       `json:"tag"`
	Name          string       `json:"name"`
	ClanLevel     int          `json:"clanLevel"`
	Description   string       `json:"description,omitempty"`
	BadgeURLs     BadgeURLs    `json:"badgeUrls"`
	Members       int          `json:"members"`
	ClanPoints    int          `json:"clanPoints"`
	CapitalPoints int          `json:"clanCapitalPoints"`
	WarWins       int          `json:"warWins"`
	WarWinStreak  int          `json:"warWinStreak"`
	WarLeague     *League      `json:"warLeague,omitempty"`
	ClanCapital   *ClanCapital `json:"clanCapital,omitempty"`
	MemberList    []ClanMember `json:"memberList"`
}

type Unit struct {
	Name               string `json:"name"`
	Level              int    `json:"level"`
	MaxLevel           int    `json:"maxLevel"`
	Village            string `json:"village,omitempty"`
	SuperTroopIsActive bool   `json:"superTroopIsActive,omitempty"`
}

type Achievement struct {
	Name    string `json:"name"`
	Stars   int    `json:"stars"`
	Value   int    `json:"value"`
	Target  int    `json:"target"`
	Village string `json:"village,omitempty"`
}

// Player is the optional per-member detail. Any field may be missing.
type Player struct {
	Tag                      string        `json:"tag"`
	Name                     string        `json:"name"`
	TownHallLevel            *int          `json:"townHallLevel,omitempty"`
	ExpLevel                 *int          `json:"expLevel,omitempty"`
	Trophies                 *int          `json:"trophies,omitempty"`
	BestTrophies             *int          `json:"bestTrophies,omitempty"`
	WarStars                 *int          `json:"warStars,omitempty"`
	AttackWins               *int          `json:"attackWins,omitempty"`
	DefenseWins              *int          `json:"defenseWins,omitempty"`
	BuilderHallLevel         *int          `json:"builderHallLevel,omitempty"`
	BuilderBaseTrophies      *int          `json:"builderBaseTrophies,omitempty"`
	BestBuilderBaseTrophies  *int          `json:"bestBuilderBaseTrophies,omitempty"`
	ClanCapitalContributions *int          `json:"clanCapitalContributions,omitempty"`
	Donations                *int          `json:"donations,omitempty"`
	DonationsReceived        *int          `json:"donationsReceived,omitempty"`
	League                   *League       `json:"league,omitempty"`
	LeagueTier               *League       `json:"leagueTier,omitempty"`
	Heroes                   []Unit        `json:"heroes,omitempty"`
	HeroEquipment            []Unit        `json:"heroEquipment,omitempty"`
	Troops                   []Unit        `json:"troops,omitempty"`
	Spells                   []Unit        `json:"spells,omitempty"`
	Achievements             []Achievement `json:"achievements,omitempty"`
}

type WarLogEntry struct {
	Result  string  `json:"result,omitempty"`
	EndTime string  `json:"endTime,omitempty"`
	Size    int     `json:"teamSize,omitempty"`
	Clan    WarSide `json:"clan"`
	Enemy   WarSide `json:"opponent"`
}

type WarSide struct {
	Tag   string `json:"tag,omitempty"`
	Name  string `json:"name,omitempty"`
	Stars int    `json:"stars"`
}

type CapitalRaidSeason struct {
	State                   string `json:"state,omitempty"`
	StartTime               string `json:"startTime,omitempty"`
	EndTime                 string `json:"endTime,omitempty"`
	CapitalTotalLoot        int    `json:"capitalTotalLoot"`
	RaidsCompleted          int    `json:"raidsCompleted"`
	TotalAttacks            int    `json:"totalAttacks"`
	EnemyDistrictsDestroyed int    `json:"enemyDistrictsDestroyed"`
}

// RawSnapshot is everything Fetch gathered for one clan at one instant.
// PlayerDetails is keyed by normalized player tag; members without detail are
// simply absent.
type RawSnapshot struct {
	ClanTag        string              `json:"clanTag"`
	FetchedAt      time.Time           `json:"fetchedAt"`
	Clan           Clan                `json:"clan"`
	Members        []ClanMember        `json:"members"`
	PlayerDetails  map[string]*Player  `json:"playerDetails"`
	WarLog         []WarLogEntry       `json:"warLog,omitempty"`
	CapitalSeasons []CapitalRaidSeason `json:"capitalSeasons,omitempty"`
	DetailErrors   []string            `json:"detailErrors,omitempty"`
}
