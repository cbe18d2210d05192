package ingestion

import "time"

// Clan is the latest known header of a clan, upserted by tag every run.
type Clan struct {
	Tag              string     `gorm:"column:tag;primaryKey;size:16" json:"tag"`
	Name             string     `gorm:"column:name;not null" json:"name"`
	Level            int        `gorm:"column:level;not null;default:0" json:"level"`
	Description      string     `gorm:"column:description;type:text" json:"description,omitempty"`
	BadgeURL         string     `gorm:"column:badge_url" json:"badge_url,omitempty"`
	MemberCount      int        `gorm:"column:member_count;not null;default:0" json:"member_count"`
	ClanPoints       int        `gorm:"column:clan_points;not null;default:0" json:"clan_points"`
	CapitalPoints    int        `gorm:"column:capital_points;not null;default:0" json:"capital_points"`
	WarWins          int        `gorm:"column:war_wins;not null;default:0" json:"war_wins"`
	WarWinStreak     int        `gorm:"column:war_win_streak;not null;default:0" json:"war_win_streak"`
	WarLeague        string     `gorm:"column:war_league" json:"war_league,omitempty"`
	CapitalHallLevel *int       `gorm:"column:capital_hall_level" json:"capital_hall_level,omitempty"`
	LastSnapshotAt   *time.Time `gorm:"column:last_snapshot_at" json:"last_snapshot_at,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Clan) TableName() string { return "clan" }
