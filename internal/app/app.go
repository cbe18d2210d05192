package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/data/db"
	apphttp "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/http"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/observability"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *apphttp.Server
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.IngestionVersion,
	})
	metrics := observability.Init(log)

	reposet := wireRepos(theDB, log)

	clientset, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(theDB, log, cfg, reposet, clientset, metrics)
	if err != nil {
		clientset.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, theDB, serviceset, clientset)
	server := wireServer(log, cfg, handlerset, serviceset, cfg.TracingEnabled)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       server,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		otelShutdown: shutdown,
	}, nil
}

// Start launches the queue workers and, when withScheduler is set, the cron
// trigger and metric collectors.
func (a *App) Start(withScheduler bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Services.Queue.Start(ctx)
	if !withScheduler {
		return
	}
	a.Services.Scheduler.Start(ctx)
	if next := a.Services.Scheduler.Next(time.Now().UTC()); !next.IsZero() {
		a.Log.Info("Next scheduled ingestion", "at", next)
	}

	m := a.Services.Metrics
	m.StartPostgresCollector(ctx, a.Log, a.DB)
	m.StartJobStoreCollector(ctx, a.Log, a.DB)
	if a.Clients.ClanLock != nil {
		m.StartRedisCollector(ctx, a.Log, a.Clients.ClanLock)
	}
}

// Run serves the status API until Close shuts the server down.
func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Serving ingestion API", "port", a.Cfg.Port)
	return a.Server.Run()
}

// Close stops accepting requests, lets running jobs observe cancellation and
// flushes spans.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown failed", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
		a.Services.Queue.Wait()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Clients.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
