package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/platform/envutil"
)

type ArchiveMode string

const (
	ArchiveModeGCS         ArchiveMode = "gcs"
	ArchiveModeGCSEmulator ArchiveMode = "gcs_emulator"
)

// ArchiveConfig selects the bucket raw snapshots are written to. An empty
// Bucket disables archiving.
type ArchiveConfig struct {
	Bucket       string
	Prefix       string
	Mode         ArchiveMode
	EmulatorHost string
	Timeout      time.Duration
}

func (c ArchiveConfig) Enabled() bool { return strings.TrimSpace(c.Bucket) != "" }

type ArchiveConfigErrorCode string

const (
	ArchiveConfigErrorInvalidMode         ArchiveConfigErrorCode = "invalid_mode"
	ArchiveConfigErrorMissingEmulatorHost ArchiveConfigErrorCode = "missing_emulator_host"
	ArchiveConfigErrorInvalidEmulatorHost ArchiveConfigErrorCode = "invalid_emulator_host"
)

type ArchiveConfigError struct {
	Code         ArchiveConfigErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ArchiveConfigError) Error() string {
	if e == nil {
		return "invalid raw archive config"
	}
	switch e.Code {
	case ArchiveConfigErrorInvalidMode:
		return fmt.Sprintf("invalid RAW_ARCHIVE_MODE=%q (allowed: %q, %q)", e.Mode, ArchiveModeGCS, ArchiveModeGCSEmulator)
	case ArchiveConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("RAW_ARCHIVE_MODE=%q requires STORAGE_EMULATOR_HOST", ArchiveModeGCSEmulator)
	case ArchiveConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.EmulatorHost)
	default:
		return "invalid raw archive config"
	}
}

func (e *ArchiveConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveArchiveConfigFromEnv reads RAW_ARCHIVE_BUCKET, RAW_ARCHIVE_PREFIX,
// RAW_ARCHIVE_MODE and STORAGE_EMULATOR_HOST. A set emulator host with no
// explicit mode selects the emulator.
func ResolveArchiveConfigFromEnv(log *logger.Logger) (ArchiveConfig, error) {
	cfg := ArchiveConfig{
		Bucket:       envutil.String("RAW_ARCHIVE_BUCKET", "", log),
		Prefix:       envutil.String("RAW_ARCHIVE_PREFIX", "snapshots", log),
		EmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", "", nil),
		Timeout:      envutil.Duration("RAW_ARCHIVE_TIMEOUT", 30*time.Second, log),
	}
	rawMode := envutil.String("RAW_ARCHIVE_MODE", "", nil)
	switch mode := ArchiveMode(strings.ToLower(rawMode)); mode {
	case "":
		cfg.Mode = ArchiveModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ArchiveModeGCSEmulator
		}
	case ArchiveModeGCS, ArchiveModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, &ArchiveConfigError{Code: ArchiveConfigErrorInvalidMode, Mode: rawMode}
	}
	return cfg, ValidateArchiveConfig(cfg)
}

func ValidateArchiveConfig(cfg ArchiveConfig) error {
	switch cfg.Mode {
	case ArchiveModeGCS:
		return nil
	case ArchiveModeGCSEmulator:
	default:
		return &ArchiveConfigError{Code: ArchiveConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	if cfg.EmulatorHost == "" {
		return &ArchiveConfigError{Code: ArchiveConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ArchiveConfigError{
			Code:         ArchiveConfigErrorInvalidEmulatorHost,
			Mode:         string(cfg.Mode),
			EmulatorHost: cfg.EmulatorHost,
			Cause:        err,
		}
	}
	return nil
}

// objectWriter is the slice of the storage client the archive needs.
type objectWriter interface {
	Write(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

type gcsWriter struct{ client *storage.Client }

func (g gcsWriter) Write(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// RawArchive stores raw upstream payloads as
// <prefix>/<clan tag without '#'>/<payload version>.json.
type RawArchive struct {
	log    *logger.Logger
	cfg    ArchiveConfig
	writer objectWriter
	close  func() error
}

func NewRawArchive(ctx context.Context, log *logger.Logger, cfg ArchiveConfig) (*RawArchive, error) {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("raw archive: missing bucket")
	}
	if err := ValidateArchiveConfig(cfg); err != nil {
		return nil, err
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("raw archive: storage client: %w", err)
	}
	log.Info("Raw snapshot archive enabled", "bucket", cfg.Bucket, "mode", string(cfg.Mode))
	return newRawArchive(log, cfg, gcsWriter{client: client}, client.Close), nil
}

func newRawArchive(log *logger.Logger, cfg ArchiveConfig, w objectWriter, closeFn func() error) *RawArchive {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RawArchive{
		log:    log.With("service", "RawArchive"),
		cfg:    cfg,
		writer: w,
		close:  closeFn,
	}
}

func newStorageClient(ctx context.Context, cfg ArchiveConfig) (*storage.Client, error) {
	if cfg.Mode == ArchiveModeGCSEmulator {
		// STORAGE_EMULATOR_HOST is picked up by the client itself.
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

// ObjectKey returns where the payload of one snapshot version is stored.
func (a *RawArchive) ObjectKey(clanTag, payloadVersion string) string {
	clan := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(clanTag)), "#")
	return path.Join(strings.Trim(a.cfg.Prefix, "/"), clan, payloadVersion+".json")
}

// ArchiveRaw writes raw and returns its gs:// URI. Rewriting the same payload
// version overwrites the object with identical bytes.
func (a *RawArchive) ArchiveRaw(ctx context.Context, clanTag, payloadVersion string, raw []byte) (string, error) {
	if a == nil || a.writer == nil {
		return "", fmt.Errorf("raw archive not initialized")
	}
	if strings.TrimSpace(payloadVersion) == "" {
		return "", fmt.Errorf("raw archive: payload version required")
	}
	key := a.ObjectKey(clanTag, payloadVersion)
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	if err := a.writer.Write(ctx, a.cfg.Bucket, key, "application/json", bytes.NewReader(raw)); err != nil {
		return "", err
	}
	uri := "gs://" + a.cfg.Bucket + "/" + key
	a.log.Debug("Raw snapshot archived", "uri", uri, "bytes", len(raw))
	return uri, nil
}

func (a *RawArchive) Close() error {
	if a == nil || a.close == nil {
		return nil
	}
	return a.close()
}
