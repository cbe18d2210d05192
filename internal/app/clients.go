package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/redis"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/observability"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/platform/gcp"
)

type Clients struct {
	GameData gamedata.Client
	Fetcher  *gamedata.Fetcher
	// optional
	ClanLock redis.ClanLock
	Archive  *gcp.RawArchive
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Game API
	gcfg := gamedata.Config{
		BaseURL: cfg.GameAPIBaseURL,
		Token:   cfg.GameAPIToken,
		Timeout: cfg.GameAPITimeout,
	}
	if metrics != nil {
		gcfg.Observer = metrics
	}
	client, err := gamedata.New(log, gcfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init game data client: %w", err)
	}
	fetcher := gamedata.NewFetcher(log, client, gamedata.FetcherOptions{
		DetailConcurrency: cfg.DetailConcurrency,
		DetailTTL:         cfg.DetailTTL,
	})

	// Redis
	var lock redis.ClanLock
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		l, err := redis.NewClanLock(log, redis.LockConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis clan lock: %w", err)
		}
		lock = l
	}

	// Gcs
	var archive *gcp.RawArchive
	archiveCfg, err := gcp.ResolveArchiveConfigFromEnv(log)
	if err != nil {
		closeClients(lock, nil)
		return Clients{}, err
	}
	if archiveCfg.Enabled() {
		a, err := gcp.NewRawArchive(ctx, log, archiveCfg)
		if err != nil {
			closeClients(lock, nil)
			return Clients{}, fmt.Errorf("init raw archive: %w", err)
		}
		archive = a
	}

	return Clients{
		GameData: client,
		Fetcher:  fetcher,
		ClanLock: lock,
		Archive:  archive,
	}, nil
}

func closeClients(lock redis.ClanLock, archive *gcp.RawArchive) {
	if lock != nil {
		_ = lock.Close()
	}
	_ = archive.Close()
}

func (c Clients) Close() {
	closeClients(c.ClanLock, c.Archive)
}
