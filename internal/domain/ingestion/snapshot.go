package ingestion

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClanSnapshot is one immutable capture of a clan roster.
//
// (clan_tag, payload_version) identifies identical content; (clan_tag, run_id)
// identifies the run that wrote it so a retried run rewrites its own row.
type ClanSnapshot struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClanTag            string         `gorm:"column:clan_tag;not null;uniqueIndex:idx_snapshot_clan_payload,priority:1;uniqueIndex:idx_snapshot_clan_run,priority:1;index:idx_snapshot_clan_fetched,priority:1" json:"clan_tag"`
	RunID              string         `gorm:"column:run_id;not null;size:64;uniqueIndex:idx_snapshot_clan_run,priority:2" json:"run_id"`
	FetchedAt          time.Time      `gorm:"column:fetched_at;not null;index:idx_snapshot_clan_fetched,priority:2" json:"fetched_at"`
	MemberCount        int            `gorm:"column:member_count;not null" json:"member_count"`
	PayloadVersion     string         `gorm:"column:payload_version;not null;size:32;uniqueIndex:idx_snapshot_clan_payload,priority:2" json:"payload_version"`
	IngestionVersion   string         `gorm:"column:ingestion_version;not null" json:"ingestion_version"`
	SchemaVersion      int            `gorm:"column:schema_version;not null" json:"schema_version"`
	SeasonID           string         `gorm:"column:season_id;not null;index" json:"season_id"`
	SeasonStart        time.Time      `gorm:"column:season_start;not null" json:"season_start"`
	SeasonEnd          time.Time      `gorm:"column:season_end;not null" json:"season_end"`
	ClanName           string         `gorm:"column:clan_name" json:"clan_name"`
	ClanLevel          int            `gorm:"column:clan_level" json:"clan_level"`
	ClanPoints         int            `gorm:"column:clan_points" json:"clan_points"`
	WarLogCount        int            `gorm:"column:war_log_count" json:"war_log_count"`
	CapitalSeasonCount int            `gorm:"column:capital_season_count" json:"capital_season_count"`
	Metadata           datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (ClanSnapshot) TableName() string { return "clan_snapshot" }

func (s *ClanSnapshot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
