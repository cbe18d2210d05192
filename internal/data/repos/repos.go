package repos

import (
	"gorm.io/gorm"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos/clan"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos/jobs"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type ClanRepo = clan.ClanRepo
type MemberRepo = clan.MemberRepo
type SnapshotRepo = clan.SnapshotRepo
type MemberStatRepo = clan.MemberStatRepo
type DerivedMetricRepo = clan.DerivedMetricRepo
type CanonicalRepo = clan.CanonicalRepo
type JoinerRepo = clan.JoinerRepo
type TenureRepo = clan.TenureRepo

type IngestionJobRepo = jobs.IngestionJobRepo

func NewClanRepo(db *gorm.DB, baseLog *logger.Logger) ClanRepo { return clan.NewClanRepo(db, baseLog) }
func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return clan.NewMemberRepo(db, baseLog)
}
func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	return clan.NewSnapshotRepo(db, baseLog)
}
func NewMemberStatRepo(db *gorm.DB, baseLog *logger.Logger) MemberStatRepo {
	return clan.NewMemberStatRepo(db, baseLog)
}
func NewDerivedMetricRepo(db *gorm.DB, baseLog *logger.Logger) DerivedMetricRepo {
	return clan.NewDerivedMetricRepo(db, baseLog)
}
func NewCanonicalRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalRepo {
	return clan.NewCanonicalRepo(db, baseLog)
}
func NewJoinerRepo(db *gorm.DB, baseLog *logger.Logger) JoinerRepo {
	return clan.NewJoinerRepo(db, baseLog)
}
func NewTenureRepo(db *gorm.DB, baseLog *logger.Logger) TenureRepo {
	return clan.NewTenureRepo(db, baseLog)
}

func NewIngestionJobRepo(db *gorm.DB, baseLog *logger.Logger) IngestionJobRepo {
	return jobs.NewIngestionJobRepo(db, baseLog)
}
