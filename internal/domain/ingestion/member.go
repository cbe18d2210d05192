package ingestion

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HeroLevels are nil when the player has not unlocked the hero or detail was unavailable.
type HeroLevels struct {
	BarbarianKing *int `gorm:"column:bk_level" json:"bk,omitempty"`
	ArcherQueen   *int `gorm:"column:aq_level" json:"aq,omitempty"`
	MinionPrince  *int `gorm:"column:mp_level" json:"mp,omitempty"`
	GrandWarden   *int `gorm:"column:gw_level" json:"gw,omitempty"`
	RoyalChampion *int `gorm:"column:rc_level" json:"rc,omitempty"`
}

// Member is the "latest known state" row of one player in one clan.
// Keyed by (clan_tag, tag); never deleted by ingestion.
type Member struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClanTag           string     `gorm:"column:clan_tag;not null;uniqueIndex:idx_member_clan_tag,priority:1" json:"clan_tag"`
	Tag               string     `gorm:"column:tag;not null;uniqueIndex:idx_member_clan_tag,priority:2" json:"tag"`
	Name              string     `gorm:"column:name;not null" json:"name"`
	Role              string     `gorm:"column:role" json:"role,omitempty"`
	TownHallLevel     *int       `gorm:"column:town_hall_level" json:"town_hall_level,omitempty"`
	ExpLevel          *int       `gorm:"column:exp_level" json:"exp_level,omitempty"`
	Trophies          *int       `gorm:"column:trophies" json:"trophies,omitempty"`
	BuilderTrophies   *int       `gorm:"column:builder_trophies" json:"builder_trophies,omitempty"`
	LeagueID          *int       `gorm:"column:league_id" json:"league_id,omitempty"`
	LeagueName        string     `gorm:"column:league_name" json:"league_name,omitempty"`
	RankedLeagueID    *int       `gorm:"column:ranked_league_id" json:"ranked_league_id,omitempty"`
	RankedLeagueName  string     `gorm:"column:ranked_league_name" json:"ranked_league_name,omitempty"`
	Donations         *int       `gorm:"column:donations" json:"donations,omitempty"`
	DonationsReceived *int       `gorm:"column:donations_received" json:"donations_received,omitempty"`
	HeroLevels        HeroLevels `gorm:"embedded" json:"hero_levels"`
	RushPercent       *float64   `gorm:"column:rush_percent" json:"rush_percent,omitempty"`
	TenureDays        *int       `gorm:"column:tenure_days" json:"tenure_days,omitempty"`
	TenureAsOf        *time.Time `gorm:"column:tenure_as_of" json:"tenure_as_of,omitempty"`
	FirstSeenAt       time.Time  `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	LastSeenAt        time.Time  `gorm:"column:last_seen_at;not null;index" json:"last_seen_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Member) TableName() string { return "member" }

func (m *Member) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
