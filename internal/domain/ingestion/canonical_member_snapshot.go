package ingestion

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CanonicalMemberSnapshot is the read-optimized projection of a stat row plus
// its enrichment, keyed by (snapshot_id, player_tag).
type CanonicalMemberSnapshot struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SnapshotID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_canonical_snapshot_player,priority:1" json:"snapshot_id"`
	ClanTag        string         `gorm:"column:clan_tag;not null;index" json:"clan_tag"`
	PlayerTag      string         `gorm:"column:player_tag;not null;uniqueIndex:idx_canonical_snapshot_player,priority:2;index" json:"player_tag"`
	FetchedAt      time.Time      `gorm:"column:fetched_at;not null" json:"fetched_at"`
	PayloadVersion string         `gorm:"column:payload_version;not null" json:"payload_version"`
	SchemaVersion  int            `gorm:"column:schema_version;not null" json:"schema_version"`
	Payload        datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (CanonicalMemberSnapshot) TableName() string { return "canonical_member_snapshot" }

func (c *CanonicalMemberSnapshot) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
