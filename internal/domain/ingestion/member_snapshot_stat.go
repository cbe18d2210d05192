package ingestion

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MemberSnapshotStat is the immutable per-member history row of one snapshot.
// Rewritten wholesale per snapshot (delete by snapshot_id, then insert).
type MemberSnapshotStat struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SnapshotID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_stat_snapshot_player,priority:1" json:"snapshot_id"`
	ClanTag           string         `gorm:"column:clan_tag;not null;index" json:"clan_tag"`
	PlayerTag         string         `gorm:"column:player_tag;not null;uniqueIndex:idx_stat_snapshot_player,priority:2;index" json:"player_tag"`
	Name              string         `gorm:"column:name;not null" json:"name"`
	Role              string         `gorm:"column:role" json:"role,omitempty"`
	TownHallLevel     *int           `gorm:"column:town_hall_level" json:"town_hall_level,omitempty"`
	Trophies          *int           `gorm:"column:trophies" json:"trophies,omitempty"`
	BuilderTrophies   *int           `gorm:"column:builder_trophies" json:"builder_trophies,omitempty"`
	LeagueName        string         `gorm:"column:league_name" json:"league_name,omitempty"`
	RankedLeagueName  string         `gorm:"column:ranked_league_name" json:"ranked_league_name,omitempty"`
	Donations         *int           `gorm:"column:donations" json:"donations,omitempty"`
	DonationsReceived *int           `gorm:"column:donations_received" json:"donations_received,omitempty"`
	HeroLevels        HeroLevels     `gorm:"embedded" json:"hero_levels"`
	RushPercent       *float64       `gorm:"column:rush_percent" json:"rush_percent,omitempty"`
	TenureDays        *int           `gorm:"column:tenure_days" json:"tenure_days,omitempty"`
	TenureAsOf        *time.Time     `gorm:"column:tenure_as_of" json:"tenure_as_of,omitempty"`
	Enrichment        datatypes.JSON `gorm:"column:enrichment" json:"enrichment,omitempty"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (MemberSnapshotStat) TableName() string { return "member_snapshot_stat" }

func (s *MemberSnapshotStat) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Enrichment is the optional per-member detail bundle stored with a stat row.
// Every field is nullable; absence is not an error.
type Enrichment struct {
	PetLevels               map[string]int `json:"petLevels,omitempty"`
	BuilderHallLevel        *int           `json:"builderHallLevel,omitempty"`
	BuilderBaseTrophies     *int           `json:"builderBaseTrophies,omitempty"`
	BestBuilderBaseTrophies *int           `json:"bestBuilderBaseTrophies,omitempty"`
	WarStars                *int           `json:"warStars,omitempty"`
	AttackWins              *int           `json:"attackWins,omitempty"`
	DefenseWins             *int           `json:"defenseWins,omitempty"`
	CapitalContributions    *int           `json:"capitalContributions,omitempty"`
	MaxTroopCount           *int           `json:"maxTroopCount,omitempty"`
	MaxSpellCount           *int           `json:"maxSpellCount,omitempty"`
	SuperTroopsActive       []string       `json:"superTroopsActive,omitempty"`
	AchievementCount        *int           `json:"achievementCount,omitempty"`
	AchievementScore        *int           `json:"achievementScore,omitempty"`
	ExpLevel                *int           `json:"expLevel,omitempty"`
	BestTrophies            *int           `json:"bestTrophies,omitempty"`
	EquipmentLevels         map[string]int `json:"equipmentLevels,omitempty"`
}
