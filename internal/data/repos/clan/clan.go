package clan

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type ClanRepo interface {
	Upsert(dbc dbctx.Context, row *types.Clan) error
	GetByTag(dbc dbctx.Context, tag string) (*types.Clan, error)
}

type clanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClanRepo(db *gorm.DB, baseLog *logger.Logger) ClanRepo {
	return &clanRepo{db: db, log: baseLog.With("repo", "ClanRepo")}
}

// Upsert is last-write-wins on tag; created_at survives.
func (r *clanRepo) Upsert(dbc dbctx.Context, row *types.Clan) error {
	if row == nil || row.Tag == "" {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tag"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "level", "description", "badge_url", "member_count", "clan_points",
				"capital_points", "war_wins", "war_win_streak", "war_league", "capital_hall_level",
				"last_snapshot_at", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *clanRepo) GetByTag(dbc dbctx.Context, tag string) (*types.Clan, error) {
	var row types.Clan
	err := dbc.DB(r.db).Where("tag = ?", tag).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
