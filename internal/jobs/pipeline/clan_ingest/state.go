package clan_ingest

import (
	"time"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
)

// ClanData is the normalized clan header produced by Transform.
type ClanData struct {
	Tag              string
	Name             string
	Level            int
	Description      string
	BadgeURL         string
	MemberCount      int
	ClanPoints       int
	CapitalPoints    int
	WarWins          int
	WarWinStreak     int
	WarLeague        string
	CapitalHallLevel *int
}

// MemberData is one normalized member produced by Transform.
type MemberData struct {
	Tag               string
	Name              string
	Role              string
	TownHallLevel     *int
	ExpLevel          *int
	Trophies          *int
	BuilderTrophies   *int
	League            leagueFields
	Donations         *int
	DonationsReceived *int
	Heroes            types.HeroLevels
	RushPercent       *float64
	Tenure            *Tenure
	Detail            *gamedata.Player
}

type Transformed struct {
	Clan    ClanData
	Members []MemberData
}

// runState carries each phase's in-memory output to the next phase.
type runState struct {
	jobID     string
	clanTag   string
	raw       *gamedata.RawSnapshot
	data      *Transformed
	joiners   []string
	snapshot  *types.ClanSnapshot
	stats     []*types.MemberSnapshotStat
	fetchedAt time.Time
}

// snapshotDay is the UTC day that joiner events and tenure anchors key on.
func (s *runState) snapshotDay() time.Time {
	if s.raw != nil {
		return dayOf(s.raw.FetchedAt)
	}
	if s.snapshot != nil {
		return dayOf(s.snapshot.FetchedAt)
	}
	return dayOf(s.fetchedAt)
}
