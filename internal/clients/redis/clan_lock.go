package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

// ErrLockHeld is returned when the lock could not be taken before ctx expired.
var ErrLockHeld = errors.New("lock held by another run")

type ClanLock interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	Acquire(ctx context.Context, key string) (release func(), err error)
	Ping(ctx context.Context) error
	Close() error
}

type LockConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL bounds how long a crashed holder keeps the lock.
	TTL  time.Duration
	Poll time.Duration
}

type clanLock struct {
	log *logger.Logger
	rdb *goredis.Client
	cfg LockConfig
}

// Only the holder's token may delete the key.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewClanLock(log *logger.Logger, cfg LockConfig) (ClanLock, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ingest:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 500 * time.Millisecond
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &clanLock{
		log: log.With("service", "RedisClanLock"),
		rdb: rdb,
		cfg: cfg,
	}, nil
}

func (l *clanLock) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.rdb == nil {
		return nil, fmt.Errorf("redis clan lock not initialized")
	}
	redisKey := l.cfg.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.cfg.Poll)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis setnx %s: %w", redisKey, err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
		case <-ticker.C:
		}
	}
}

func (l *clanLock) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
		l.log.Warn("redis lock release failed", "key", redisKey, "error", err)
	}
}

func (l *clanLock) Ping(ctx context.Context) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("redis clan lock not initialized")
	}
	return l.rdb.Ping(ctx).Err()
}

func (l *clanLock) Close() error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return l.rdb.Close()
}
