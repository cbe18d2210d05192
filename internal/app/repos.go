package app

import (
	"gorm.io/gorm"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/repos"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type Repos struct {
	Clan          repos.ClanRepo
	Member        repos.MemberRepo
	Snapshot      repos.SnapshotRepo
	MemberStat    repos.MemberStatRepo
	DerivedMetric repos.DerivedMetricRepo
	Canonical     repos.CanonicalRepo
	Joiner        repos.JoinerRepo
	Tenure        repos.TenureRepo
	IngestionJob  repos.IngestionJobRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Clan:          repos.NewClanRepo(db, log),
		Member:        repos.NewMemberRepo(db, log),
		Snapshot:      repos.NewSnapshotRepo(db, log),
		MemberStat:    repos.NewMemberStatRepo(db, log),
		DerivedMetric: repos.NewDerivedMetricRepo(db, log),
		Canonical:     repos.NewCanonicalRepo(db, log),
		Joiner:        repos.NewJoinerRepo(db, log),
		Tenure:        repos.NewTenureRepo(db, log),
		IngestionJob:  repos.NewIngestionJobRepo(db, log),
	}
}
