package app

import (
	"context"

	"gorm.io/gorm"

	apphttp "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/http"
	httpH "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/http/handlers"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Ingestion *httpH.IngestionHandler
}

// dbPinger adapts the gorm pool to the health check.
type dbPinger struct{ db *gorm.DB }

func (p dbPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{}
	if db != nil {
		checks["postgres"] = dbPinger{db: db}
	}
	if clients.ClanLock != nil {
		checks["redis"] = clients.ClanLock
	}
	return Handlers{
		Health:    httpH.NewHealthHandler(checks),
		Ingestion: httpH.NewIngestionHandler(services.Queue, services.JobStore, cfg.HomeClanTag),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, services Services, tracing bool) *apphttp.Server {
	rcfg := apphttp.RouterConfig{
		Log:              log,
		CORSOrigins:      cfg.CORSOrigins,
		Metrics:          services.Metrics,
		IngestionHandler: handlers.Ingestion,
		HealthHandler:    handlers.Health,
	}
	if tracing {
		rcfg.ServiceName = cfg.ServiceName
	}
	return apphttp.NewServer(":"+cfg.Port, rcfg)
}
