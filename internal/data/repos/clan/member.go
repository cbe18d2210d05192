package clan

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/dbctx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type MemberRepo interface {
	ListTags(dbc dbctx.Context, clanTag string) ([]string, error)
	ListByClan(dbc dbctx.Context, clanTag string) ([]*types.Member, error)
	Upsert(dbc dbctx.Context, rows []*types.Member) (int64, error)
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (r *memberRepo) ListTags(dbc dbctx.Context, clanTag string) ([]string, error) {
	var tags []string
	if clanTag == "" {
		return tags, nil
	}
	err := dbc.DB(r.db).
		Model(&types.Member{}).
		Where("clan_tag = ?", clanTag).
		Order("tag ASC").
		Pluck("tag", &tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *memberRepo) ListByClan(dbc dbctx.Context, clanTag string) ([]*types.Member, error) {
	var out []*types.Member
	if err := dbc.DB(r.db).Where("clan_tag = ?", clanTag).Order("tag ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes rows keyed by (clan_tag, tag). first_seen_at and created_at
// are only set on insert; tenure is only replaced by a non-null value; every
// other column is last-write-wins.
func (r *memberRepo) Upsert(dbc dbctx.Context, rows []*types.Member) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, m := range rows {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.FirstSeenAt.IsZero() {
			m.FirstSeenAt = m.LastSeenAt
		}
		m.UpdatedAt = now
	}
	updates := clause.AssignmentColumns([]string{
		"name", "role", "town_hall_level", "exp_level", "trophies", "builder_trophies",
		"league_id", "league_name", "ranked_league_id", "ranked_league_name",
		"donations", "donations_received",
		"bk_level", "aq_level", "mp_level", "gw_level", "rc_level",
		"rush_percent", "last_seen_at", "updated_at",
	})
	// a run that resolved no tenure keeps the stored value
	for _, col := range []string{"tenure_days", "tenure_as_of"} {
		updates = append(updates, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr("COALESCE(excluded." + col + ", member." + col + ")"),
		})
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "clan_tag"}, {Name: "tag"}},
			DoUpdates: updates,
		}).
		CreateInBatches(rows, 100)
	if res.Error != nil {
		return 0, res.Error
	}
	return int64(len(rows)), nil
}
