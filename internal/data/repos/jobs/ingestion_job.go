package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type IngestionJobRepo interface {
	Create(dbc dbctx.Context, row *types.IngestionJobRow) error
	GetByID(dbc dbctx.Context, id string) (*types.IngestionJobRow, error)
	Save(dbc dbctx.Context, row *types.IngestionJobRow) error
	ListByStatus(dbc dbctx.Context, statuses []string, limit int) ([]*types.IngestionJobRow, error)
}

type ingestionJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestionJobRepo(db *gorm.DB, baseLog *logger.Logger) IngestionJobRepo {
	return &ingestionJobRepo{
		db:  db,
		log: baseLog.With("repo", "IngestionJobRepo"),
	}
}

func (r *ingestionJobRepo) Create(dbc dbctx.Context, row *types.IngestionJobRow) error {
	if row == nil || row.ID == "" {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	return dbc.DB(r.db).Create(row).Error
}

// GetByID returns (nil, nil) when the job does not exist.
func (r *ingestionJobRepo) GetByID(dbc dbctx.Context, id string) (*types.IngestionJobRow, error) {
	if id == "" {
		return nil, nil
	}
	var row types.IngestionJobRow
	err := dbc.DB(r.db).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Save writes the full row, inserting it when absent.
func (r *ingestionJobRepo) Save(dbc dbctx.Context, row *types.IngestionJobRow) error {
	if row == nil || row.ID == "" {
		return nil
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"clan_tag", "status", "attempt", "error", "steps", "logs", "result", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *ingestionJobRepo) ListByStatus(dbc dbctx.Context, statuses []string, limit int) ([]*types.IngestionJobRow, error) {
	var out []*types.IngestionJobRow
	q := dbc.DB(r.db).Order("created_at ASC")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
