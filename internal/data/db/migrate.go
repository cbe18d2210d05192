package db

import (
	"gorm.io/gorm"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
)

// AutoMigrateAll creates or updates every table the ingestion service owns.
// Natural-key unique indexes are declared on the models; the upsert paths in
// the repos depend on them.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Jobs
		// =========================
		&types.IngestionJobRow{},

		// =========================
		// Latest-state projections
		// =========================
		&types.Clan{},
		&types.Member{},
		&types.JoinerEvent{},
		&types.TenureEntry{},

		// =========================
		// History
		// =========================
		&types.ClanSnapshot{},
		&types.MemberSnapshotStat{},
		&types.CanonicalMemberSnapshot{},
		&types.DerivedMetric{},
	)
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
