package ingestion

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WindowLatest is the only window maintained on every ingestion run.
const WindowLatest = "latest"

// DerivedMetric holds one computed value per (clan, member, metric, window).
type DerivedMetric struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClanTag    string     `gorm:"column:clan_tag;not null;uniqueIndex:idx_metric_key,priority:1;index:idx_metric_scope,priority:1" json:"clan_tag"`
	PlayerTag  string     `gorm:"column:player_tag;not null;uniqueIndex:idx_metric_key,priority:2" json:"player_tag"`
	MetricName string     `gorm:"column:metric_name;not null;uniqueIndex:idx_metric_key,priority:3" json:"metric_name"`
	Window     string     `gorm:"column:metric_window;not null;uniqueIndex:idx_metric_key,priority:4;index:idx_metric_scope,priority:2" json:"window"`
	Value      float64    `gorm:"column:value;not null" json:"value"`
	SnapshotID *uuid.UUID `gorm:"type:uuid;column:snapshot_id;index" json:"snapshot_id,omitempty"`
	ComputedAt time.Time  `gorm:"column:computed_at;not null" json:"computed_at"`
}

func (DerivedMetric) TableName() string { return "derived_metric" }

func (m *DerivedMetric) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
