package clan

import (
	"time"

	"gorm.io/gorm"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type CanonicalRepo interface {
	ReplaceForSnapshot(dbc dbctx.Context, snapshotID string, rows []*types.CanonicalMemberSnapshot) (int64, error)
	ListBySnapshot(dbc dbctx.Context, snapshotID string) ([]*types.CanonicalMemberSnapshot, error)
}

type canonicalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCanonicalRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalRepo {
	return &canonicalRepo{db: db, log: baseLog.With("repo", "CanonicalRepo")}
}

// ReplaceForSnapshot swaps the projection rows of one snapshot, so a retried
// run with a smaller roster leaves no rows behind for departed members.
func (r *canonicalRepo) ReplaceForSnapshot(dbc dbctx.Context, snapshotID string, rows []*types.CanonicalMemberSnapshot) (int64, error) {
	if snapshotID == "" {
		return 0, nil
	}
	now := time.Now().UTC()
	var inserted int64
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("snapshot_id = ?", snapshotID).Delete(&types.CanonicalMemberSnapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
			row.UpdatedAt = now
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return err
		}
		inserted = int64(len(rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *canonicalRepo) ListBySnapshot(dbc dbctx.Context, snapshotID string) ([]*types.CanonicalMemberSnapshot, error) {
	var out []*types.CanonicalMemberSnapshot
	if err := dbc.DB(r.db).Where("snapshot_id = ?", snapshotID).Order("player_tag ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
