package clan

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type DerivedMetricRepo interface {
	// ReplaceWindow drops every row of (clanTag, window) whose metric_name is
	// in names, then upserts rows. Metrics outside names are untouched.
	ReplaceWindow(dbc dbctx.Context, clanTag, window string, names []string, rows []*types.DerivedMetric) (int64, error)
	List(dbc dbctx.Context, clanTag, window string) ([]*types.DerivedMetric, error)
}

type derivedMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDerivedMetricRepo(db *gorm.DB, baseLog *logger.Logger) DerivedMetricRepo {
	return &derivedMetricRepo{db: db, log: baseLog.With("repo", "DerivedMetricRepo")}
}

func (r *derivedMetricRepo) ReplaceWindow(dbc dbctx.Context, clanTag, window string, names []string, rows []*types.DerivedMetric) (int64, error) {
	if clanTag == "" || window == "" {
		return 0, nil
	}
	var written int64
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if len(names) > 0 {
			if err := tx.
				Where("clan_tag = ? AND metric_window = ? AND metric_name IN ?", clanTag, window, names).
				Delete(&types.DerivedMetric{}).Error; err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		res := tx.
			Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "clan_tag"}, {Name: "player_tag"}, {Name: "metric_name"}, {Name: "metric_window"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"value", "snapshot_id", "computed_at"}),
			}).
			CreateInBatches(rows, 200)
		if res.Error != nil {
			return res.Error
		}
		written = int64(len(rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (r *derivedMetricRepo) List(dbc dbctx.Context, clanTag, window string) ([]*types.DerivedMetric, error) {
	var out []*types.DerivedMetric
	err := dbc.DB(r.db).
		Where("clan_tag = ? AND metric_window = ?", clanTag, window).
		Order("player_tag ASC, metric_name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
