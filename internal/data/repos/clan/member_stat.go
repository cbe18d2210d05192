package clan

import (
	"time"

	"gorm.io/gorm"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type MemberStatRepo interface {
	// ReplaceForSnapshot deletes every stat row of snapshotID and inserts rows
	// in one transaction. Running it twice with the same rows leaves exactly
	// len(rows) rows behind.
	ReplaceForSnapshot(dbc dbctx.Context, snapshotID string, rows []*types.MemberSnapshotStat) (int64, error)
	ListBySnapshot(dbc dbctx.Context, snapshotID string) ([]*types.MemberSnapshotStat, error)
	CountBySnapshot(dbc dbctx.Context, snapshotID string) (int64, error)
}

type memberStatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberStatRepo(db *gorm.DB, baseLog *logger.Logger) MemberStatRepo {
	return &memberStatRepo{db: db, log: baseLog.With("repo", "MemberStatRepo")}
}

func (r *memberStatRepo) ReplaceForSnapshot(dbc dbctx.Context, snapshotID string, rows []*types.MemberSnapshotStat) (int64, error) {
	if snapshotID == "" {
		return 0, nil
	}
	now := time.Now().UTC()
	var inserted int64
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("snapshot_id = ?", snapshotID).Delete(&types.MemberSnapshotStat{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
		}
		res := tx.CreateInBatches(rows, 100)
		if res.Error != nil {
			return res.Error
		}
		inserted = int64(len(rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *memberStatRepo) ListBySnapshot(dbc dbctx.Context, snapshotID string) ([]*types.MemberSnapshotStat, error) {
	var out []*types.MemberSnapshotStat
	if snapshotID == "" {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("snapshot_id = ?", snapshotID).Order("player_tag ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memberStatRepo) CountBySnapshot(dbc dbctx.Context, snapshotID string) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.MemberSnapshotStat{}).Where("snapshot_id = ?", snapshotID).Count(&n).Error
	return n, err
}
