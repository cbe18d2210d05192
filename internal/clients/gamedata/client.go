package gamedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/ctxutil"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/httpx"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

// Client is the read-only upstream game API.
type Client interface {
	GetClan(ctx context.Context, clanTag string) (*Clan, error)
	GetPlayer(ctx context.Context, playerTag string) (*Player, error)
	GetWarLog(ctx context.Context, clanTag string, limit int) ([]WarLogEntry, error)
	GetCapitalRaidSeasons(ctx context.Context, clanTag string, limit int) ([]CapitalRaidSeason, error)
}

type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries uint64
	// optional
	Observer RequestObserver
}

// RequestObserver sees every HTTP round trip, retries included. status is 0
// when the request never got a response.
type RequestObserver interface {
	ObserveUpstream(endpoint string, status int, dur time.Duration)
}

// APIError is a non-2xx upstream response.
type APIError struct {
	Status int
	Reason string
	Path   string
	// RetryAfter is the upstream's requested pause on 429, zero otherwise.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason != "" {
		return fmt.Sprintf("game api %s: http %d: %s", e.Path, e.Status, e.Reason)
	}
	return fmt.Sprintf("game api %s: http %d", e.Path, e.Status)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e != nil && httpx.IsRetryableHTTPStatus(e.Status)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsForbidden reports whether err is an upstream 403 (private war log and the like).
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

type client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("missing game API token")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.clashofclans.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &client{
		log:  log.With("client", "GameDataClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *client) GetClan(ctx context.Context, clanTag string) (*Clan, error) {
	return getJSON[Clan](c, ctx, "clan", "/clans/"+url.PathEscape(NormalizeTag(clanTag)))
}

func (c *client) GetPlayer(ctx context.Context, playerTag string) (*Player, error) {
	return getJSON[Player](c, ctx, "player", "/players/"+url.PathEscape(NormalizeTag(playerTag)))
}

type itemsPage[T any] struct {
	Items []T `json:"items"`
}

func (c *client) GetWarLog(ctx context.Context, clanTag string, limit int) ([]WarLogEntry, error) {
	path := "/clans/" + url.PathEscape(NormalizeTag(clanTag)) + "/warlog" + limitQuery(limit)
	page, err := getJSON[itemsPage[WarLogEntry]](c, ctx, "warlog", path)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *client) GetCapitalRaidSeasons(ctx context.Context, clanTag string, limit int) ([]CapitalRaidSeason, error) {
	path := "/clans/" + url.PathEscape(NormalizeTag(clanTag)) + "/capitalraidseasons" + limitQuery(limit)
	page, err := getJSON[itemsPage[CapitalRaidSeason]](c, ctx, "capitalraidseasons", path)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("?limit=%d", limit)
}

// getJSON issues a GET and retries 429/5xx and transport errors with
// exponential backoff. Other 4xx responses are returned immediately.
func getJSON[T any](c *client, ctx context.Context, endpoint, path string) (*T, error) {
	ctx = ctxutil.Default(ctx)
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var out T
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			c.observe(endpoint, 0, start)
			return err
		}
		c.observe(endpoint, resp.StatusCode, start)
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("game api %s read body: %w", path, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode, Path: path, Reason: upstreamReason(raw)}
			if resp.StatusCode == http.StatusTooManyRequests {
				apiErr.RetryAfter = httpx.RetryAfterDuration(resp, 0, maxRetryAfter)
			}
			if apiErr.Retryable() {
				return waitRetryAfter(ctx, apiErr)
			}
			return backoff.Permanent(apiErr)
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("game api %s decode: %w", path, err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Warn("game api request retry", "path", path, "wait", wait.String(), "error", err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) observe(endpoint string, status int, start time.Time) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveUpstream(endpoint, status, time.Since(start))
	}
}

func upstreamReason(raw []byte) string {
	var body struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Message != "" {
		return body.Reason + ": " + body.Message
	}
	return body.Reason
}

const maxRetryAfter = 10 * time.Second

// waitRetryAfter sleeps out a throttle window before handing the error back
// to the backoff loop.
func waitRetryAfter(ctx context.Context, apiErr *APIError) error {
	if apiErr.RetryAfter <= 0 {
		return apiErr
	}
	t := time.NewTimer(apiErr.RetryAfter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return backoff.Permanent(apiErr)
	case <-t.C:
		return apiErr
	}
}
