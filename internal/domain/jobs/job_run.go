package jobs

import (
	"time"

	"gorm.io/datatypes"
)

// IngestionJobRow is the primary-store shape of a JobRecord. Steps, logs and
// the result bag are kept as JSON documents so the row is written in one
// statement.
type IngestionJobRow struct {
	ID        string         `gorm:"column:id;primaryKey;size:64" json:"id"`
	ClanTag   string         `gorm:"column:clan_tag;not null;index" json:"clan_tag"`
	Status    string         `gorm:"column:status;not null;index" json:"status"`
	Attempt   int            `gorm:"column:attempt;not null;default:0" json:"attempt"`
	Error     string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Steps     datatypes.JSON `gorm:"column:steps" json:"steps"`
	Logs      datatypes.JSON `gorm:"column:logs" json:"logs"`
	Result    datatypes.JSON `gorm:"column:result" json:"result"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null;index" json:"updated_at"`
}

func (IngestionJobRow) TableName() string { return "ingestion_job" }
