package clan

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type JoinerRepo interface {
	// RecordJoiners inserts events, ignoring ones already recorded for the
	// same (clan_tag, player_tag, detected_at). Returns rows actually inserted.
	RecordJoiners(dbc dbctx.Context, rows []*types.JoinerEvent) (int64, error)
	ListByClan(dbc dbctx.Context, clanTag string) ([]*types.JoinerEvent, error)
	// LatestJoinByTags returns, per player tag, the most recent detected_at
	// that is not after asOf.
	LatestJoinByTags(dbc dbctx.Context, clanTag string, tags []string, asOf time.Time) (map[string]time.Time, error)
}

type joinerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJoinerRepo(db *gorm.DB, baseLog *logger.Logger) JoinerRepo {
	return &joinerRepo{db: db, log: baseLog.With("repo", "JoinerRepo")}
}

func (r *joinerRepo) RecordJoiners(dbc dbctx.Context, rows []*types.JoinerEvent) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "clan_tag"}, {Name: "player_tag"}, {Name: "detected_at"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *joinerRepo) ListByClan(dbc dbctx.Context, clanTag string) ([]*types.JoinerEvent, error) {
	var out []*types.JoinerEvent
	err := dbc.DB(r.db).Where("clan_tag = ?", clanTag).Order("detected_at ASC, player_tag ASC").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *joinerRepo) LatestJoinByTags(dbc dbctx.Context, clanTag string, tags []string, asOf time.Time) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	if clanTag == "" || len(tags) == 0 {
		return out, nil
	}
	var rows []*types.JoinerEvent
	err := dbc.DB(r.db).
		Where("clan_tag = ? AND player_tag IN ? AND detected_at <= ?", clanTag, tags, asOf.UTC()).
		Order("detected_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, ok := out[row.PlayerTag]; !ok {
			out[row.PlayerTag] = row.DetectedAt.UTC()
		}
	}
	return out, nil
}

type TenureRepo interface {
	// SeedEntries inserts anchors, ignoring ones that already exist for the
	// same (clan_tag, player_tag, as_of).
	SeedEntries(dbc dbctx.Context, rows []*types.TenureEntry) (int64, error)
	// ListForTags returns every entry of the given players ordered by as_of
	// ascending, grouped by player tag.
	ListForTags(dbc dbctx.Context, clanTag string, tags []string) (map[string][]*types.TenureEntry, error)
}

type tenureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTenureRepo(db *gorm.DB, baseLog *logger.Logger) TenureRepo {
	return &tenureRepo{db: db, log: baseLog.With("repo", "TenureRepo")}
}

func (r *tenureRepo) SeedEntries(dbc dbctx.Context, rows []*types.TenureEntry) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.Source == "" {
			row.Source = types.TenureSourceJoiner
		}
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "clan_tag"}, {Name: "player_tag"}, {Name: "as_of"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *tenureRepo) ListForTags(dbc dbctx.Context, clanTag string, tags []string) (map[string][]*types.TenureEntry, error) {
	out := map[string][]*types.TenureEntry{}
	if clanTag == "" || len(tags) == 0 {
		return out, nil
	}
	var rows []*types.TenureEntry
	err := dbc.DB(r.db).
		Where("clan_tag = ? AND player_tag IN ?", clanTag, tags).
		Order("as_of ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PlayerTag] = append(out[row.PlayerTag], row)
	}
	return out, nil
}
