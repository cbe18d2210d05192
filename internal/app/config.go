package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/pipeline/clan_ingest"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/queue"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/scheduler"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/store"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/platform/envutil"
)

type Config struct {
	HomeClanTag      string
	IngestionVersion string

	MaxConcurrentJobs int
	MaxRetries        int
	CronSpecs         []string
	PhaseTimeout      time.Duration
	LockWait          time.Duration

	JobStoreMode store.Mode
	JobStoreDir  string

	GameAPIBaseURL    string
	GameAPIToken      string
	GameAPITimeout    time.Duration
	DetailConcurrency int
	DetailTTL         time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port        string
	CORSOrigins []string

	TracingEnabled bool
	ServiceName    string
	Environment    string

	Seasons []clan_ingest.Season
}

// fileConfig is the YAML overlay. Keys left out of the file keep their
// environment value.
type fileConfig struct {
	HomeClanTag       *string              `yaml:"home_clan_tag"`
	IngestionVersion  *string              `yaml:"ingestion_version"`
	MaxConcurrentJobs *int                 `yaml:"max_concurrent_jobs"`
	MaxRetries        *int                 `yaml:"max_retries"`
	Cron              []string             `yaml:"cron"`
	PhaseTimeout      *string              `yaml:"phase_timeout"`
	LockWait          *string              `yaml:"lock_wait"`
	JobStoreMode      *string              `yaml:"job_store_mode"`
	JobStoreDir       *string              `yaml:"job_store_dir"`
	DetailConcurrency *int                 `yaml:"detail_concurrency"`
	CORSOrigins       []string             `yaml:"cors_origins"`
	SeasonOverrides   []clan_ingest.Season `yaml:"season_overrides"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		HomeClanTag:      envutil.String("HOME_CLAN_TAG", "#2PR8R8V8P", log),
		IngestionVersion: envutil.String("INGESTION_VERSION", "dev", log),

		MaxConcurrentJobs: envutil.Int("INGEST_MAX_CONCURRENT_JOBS", 1, log),
		MaxRetries:        envutil.Int("INGEST_MAX_RETRIES", queue.DefaultMaxRetries, log),
		CronSpecs:         scheduler.ParseSpecs(envutil.String("INGEST_CRON", "0 4 * * *;0 16 * * *", log)),
		PhaseTimeout:      envutil.Duration("INGEST_PHASE_TIMEOUT", 2*time.Minute, log),
		LockWait:          envutil.Duration("INGEST_LOCK_WAIT", 5*time.Minute, log),

		JobStoreMode: store.ParseMode(envutil.String("JOB_STORE_MODE", string(store.ModeAuto), log)),
		JobStoreDir:  envutil.String("JOB_STORE_DIR", "./data/ingestion-jobs", log),

		GameAPIBaseURL:    envutil.String("COC_API_BASE_URL", "https://api.clashofclans.com/v1", log),
		GameAPIToken:      envutil.String("COC_API_TOKEN", "", log),
		GameAPITimeout:    envutil.Duration("COC_API_TIMEOUT", 20*time.Second, log),
		DetailConcurrency: envutil.Int("COC_DETAIL_CONCURRENCY", 6, log),
		DetailTTL:         envutil.Duration("COC_DETAIL_TTL", 10*time.Minute, log),

		RedisAddr:     envutil.String("REDIS_ADDR", "", log),
		RedisPassword: envutil.String("REDIS_PASSWORD", "", log),
		RedisDB:       envutil.Int("REDIS_DB", 0, log),

		Port:        envutil.String("PORT", "8080", log),
		CORSOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "", log)),

		TracingEnabled: envutil.Bool("OTEL_ENABLED", false),
		ServiceName:    envutil.String("OTEL_SERVICE_NAME", "clan-ingest", log),
		Environment:    envutil.String("APP_ENV", "development", log),
	}

	if path := strings.TrimSpace(os.Getenv("INGEST_CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path, "season_overrides", len(cfg.Seasons))
	}
	return cfg, cfg.validate()
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	setString(&c.HomeClanTag, fc.HomeClanTag)
	setString(&c.IngestionVersion, fc.IngestionVersion)
	setString(&c.JobStoreDir, fc.JobStoreDir)
	setInt(&c.MaxConcurrentJobs, fc.MaxConcurrentJobs)
	setInt(&c.MaxRetries, fc.MaxRetries)
	setInt(&c.DetailConcurrency, fc.DetailConcurrency)
	if fc.JobStoreMode != nil {
		c.JobStoreMode = store.ParseMode(*fc.JobStoreMode)
	}
	if err := setDuration(&c.PhaseTimeout, fc.PhaseTimeout, "phase_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.LockWait, fc.LockWait, "lock_wait"); err != nil {
		return err
	}
	if fc.Cron != nil {
		c.CronSpecs = nil
		for _, spec := range fc.Cron {
			c.CronSpecs = append(c.CronSpecs, scheduler.ParseSpecs(spec)...)
		}
	}
	if fc.CORSOrigins != nil {
		c.CORSOrigins = fc.CORSOrigins
	}
	c.Seasons = fc.SeasonOverrides
	return nil
}

func (c Config) validate() error {
	if gamedata.NormalizeTag(c.HomeClanTag) == "" {
		return fmt.Errorf("HOME_CLAN_TAG is empty")
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max concurrent jobs must be >= 1, got %d", c.MaxConcurrentJobs)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	for _, s := range c.Seasons {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("season override without season_id")
		}
		if !s.End.After(s.Start) {
			return fmt.Errorf("season override %s: end must be after start", s.ID)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, key string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*v))
	if err != nil {
		return fmt.Errorf("config file %s: %w", key, err)
	}
	*dst = d
	return nil
}
