package ingestion

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JoinerEvent records a member first observed in a clan. At most one row
// exists per (clan_tag, player_tag, detected_at).
type JoinerEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClanTag    string    `gorm:"column:clan_tag;not null;uniqueIndex:idx_joiner_key,priority:1" json:"clan_tag"`
	PlayerTag  string    `gorm:"column:player_tag;not null;uniqueIndex:idx_joiner_key,priority:2" json:"player_tag"`
	PlayerName string    `gorm:"column:player_name" json:"player_name"`
	DetectedAt time.Time `gorm:"column:detected_at;not null;uniqueIndex:idx_joiner_key,priority:3" json:"detected_at"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (JoinerEvent) TableName() string { return "joiner_event" }

func (e *JoinerEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TenureEntry anchors a tenure count: on AsOf the player had BaseDays of
// continuous membership.
type TenureEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClanTag   string    `gorm:"column:clan_tag;not null;uniqueIndex:idx_tenure_key,priority:1" json:"clan_tag"`
	PlayerTag string    `gorm:"column:player_tag;not null;uniqueIndex:idx_tenure_key,priority:2" json:"player_tag"`
	AsOf      time.Time `gorm:"column:as_of;not null;uniqueIndex:idx_tenure_key,priority:3" json:"as_of"`
	BaseDays  int       `gorm:"column:base_days;not null" json:"base_days"`
	Source    string    `gorm:"column:source;not null" json:"source"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (TenureEntry) TableName() string { return "tenure_entry" }

func (e *TenureEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

const (
	TenureSourceJoiner = "joiner"
	TenureSourceManual = "manual"
)
