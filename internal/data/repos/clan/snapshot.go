package clan

import (
	"errors"
	"time"

	"gorm.io/gorm"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type SnapshotRepo interface {
	GetByID(dbc dbctx.Context, id string) (*types.ClanSnapshot, error)
	GetByPayloadVersion(dbc dbctx.Context, clanTag, payloadVersion string) (*types.ClanSnapshot, error)
	GetByRunID(dbc dbctx.Context, clanTag, runID string) (*types.ClanSnapshot, error)
	// UpsertForRun returns the snapshot row for (clan_tag, payload_version)
	// if one exists, otherwise creates or rewrites the row owned by run_id.
	// created reports whether a new row was inserted.
	UpsertForRun(dbc dbctx.Context, row *types.ClanSnapshot) (out *types.ClanSnapshot, created bool, err error)
	Latest(dbc dbctx.Context, clanTag string) (*types.ClanSnapshot, error)
	LatestBefore(dbc dbctx.Context, clanTag string, before time.Time) (*types.ClanSnapshot, error)
}

type snapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	return &snapshotRepo{db: db, log: baseLog.With("repo", "SnapshotRepo")}
}

func (r *snapshotRepo) first(tx *gorm.DB, where string, args ...any) (*types.ClanSnapshot, error) {
	var row types.ClanSnapshot
	err := tx.Where(where, args...).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *snapshotRepo) GetByID(dbc dbctx.Context, id string) (*types.ClanSnapshot, error) {
	if id == "" {
		return nil, nil
	}
	return r.first(dbc.DB(r.db), "id = ?", id)
}

func (r *snapshotRepo) GetByPayloadVersion(dbc dbctx.Context, clanTag, payloadVersion string) (*types.ClanSnapshot, error) {
	return r.first(dbc.DB(r.db), "clan_tag = ? AND payload_version = ?", clanTag, payloadVersion)
}

func (r *snapshotRepo) GetByRunID(dbc dbctx.Context, clanTag, runID string) (*types.ClanSnapshot, error) {
	return r.first(dbc.DB(r.db), "clan_tag = ? AND run_id = ?", clanTag, runID)
}

func (r *snapshotRepo) UpsertForRun(dbc dbctx.Context, row *types.ClanSnapshot) (*types.ClanSnapshot, bool, error) {
	if row == nil {
		return nil, false, nil
	}
	var (
		out     *types.ClanSnapshot
		created bool
	)
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		existing, err := r.first(tx, "clan_tag = ? AND payload_version = ?", row.ClanTag, row.PayloadVersion)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		now := time.Now().UTC()
		owned, err := r.first(tx, "clan_tag = ? AND run_id = ?", row.ClanTag, row.RunID)
		if err != nil {
			return err
		}
		if owned != nil {
			// Same run, new content: rewrite in place so the id stays stable.
			row.ID = owned.ID
			row.CreatedAt = owned.CreatedAt
			row.UpdatedAt = now
			if err := tx.Save(row).Error; err != nil {
				return err
			}
			out = row
			return nil
		}

		row.CreatedAt = now
		row.UpdatedAt = now
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		out = row
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (r *snapshotRepo) Latest(dbc dbctx.Context, clanTag string) (*types.ClanSnapshot, error) {
	var row types.ClanSnapshot
	err := dbc.DB(r.db).
		Where("clan_tag = ?", clanTag).
		Order("fetched_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *snapshotRepo) LatestBefore(dbc dbctx.Context, clanTag string, before time.Time) (*types.ClanSnapshot, error) {
	var row types.ClanSnapshot
	err := dbc.DB(r.db).
		Where("clan_tag = ? AND fetched_at < ?", clanTag, before).
		Order("fetched_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
