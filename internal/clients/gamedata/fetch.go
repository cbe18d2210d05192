package gamedata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/logger"
)

type FetcherOptions struct {
	// DetailConcurrency bounds concurrent player detail requests.
	DetailConcurrency int
	// DetailTTL keeps player detail around so a retried job does not re-hit the API.
	DetailTTL    time.Duration
	WarLogLimit  int
	CapitalLimit int
	Now          func() time.Time
}

// Fetcher assembles a RawSnapshot from the upstream API.
type Fetcher struct {
	log    *logger.Logger
	client Client
	opts   FetcherOptions
	detail *cache.Cache
}

func NewFetcher(log *logger.Logger, client Client, opts FetcherOptions) *Fetcher {
	if opts.DetailConcurrency <= 0 {
		opts.DetailConcurrency = 6
	}
	if opts.DetailTTL <= 0 {
		opts.DetailTTL = 10 * time.Minute
	}
	if opts.WarLogLimit <= 0 {
		opts.WarLogLimit = 10
	}
	if opts.CapitalLimit <= 0 {
		opts.CapitalLimit = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		log:    log.With("component", "GameDataFetcher"),
		client: client,
		opts:   opts,
		detail: cache.New(opts.DetailTTL, 2*opts.DetailTTL),
	}
}

// FetchClanSnapshot fetches the clan, its member list, per-member detail and
// war/capital history. Only the clan request is fatal: missing player detail
// and private history are recorded on the snapshot and otherwise ignored.
func (f *Fetcher) FetchClanSnapshot(ctx context.Context, clanTag string) (*RawSnapshot, error) {
	tag := NormalizeTag(clanTag)
	if tag == "" {
		return nil, fmt.Errorf("clan tag required")
	}

	clan, err := f.client.GetClan(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("fetch clan %s: %w", tag, err)
	}

	snap := &RawSnapshot{
		ClanTag:       tag,
		FetchedAt:     f.opts.Now().UTC(),
		Clan:          *clan,
		Members:       clan.MemberList,
		PlayerDetails: make(map[string]*Player, len(clan.MemberList)),
	}

	var (
		mu      sync.Mutex
		softErr *multierror.Error
	)
	addErr := func(err error) {
		mu.Lock()
		softErr = multierror.Append(softErr, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.DetailConcurrency)

	g.Go(func() error {
		items, err := f.client.GetWarLog(gctx, tag, f.opts.WarLogLimit)
		if err != nil {
			addErr(fmt.Errorf("war log: %w", err))
			return nil
		}
		mu.Lock()
		snap.WarLog = items
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		items, err := f.client.GetCapitalRaidSeasons(gctx, tag, f.opts.CapitalLimit)
		if err != nil {
			addErr(fmt.Errorf("capital raid seasons: %w", err))
			return nil
		}
		mu.Lock()
		snap.CapitalSeasons = items
		mu.Unlock()
		return nil
	})

	for _, m := range clan.MemberList {
		playerTag := NormalizeTag(m.Tag)
		if playerTag == "" {
			continue
		}
		g.Go(func() error {
			p, err := f.playerDetail(gctx, playerTag)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				addErr(fmt.Errorf("player %s: %w", playerTag, err))
				return nil
			}
			mu.Lock()
			snap.PlayerDetails[playerTag] = p
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch clan %s: %w", tag, err)
	}
	if softErr != nil {
		for _, e := range softErr.Errors {
			snap.DetailErrors = append(snap.DetailErrors, e.Error())
		}
		f.log.Warn("partial clan snapshot",
			"clan_tag", tag,
			"members", len(snap.Members),
			"details", len(snap.PlayerDetails),
			"errors", len(softErr.Errors),
		)
	}
	return snap, nil
}

func (f *Fetcher) playerDetail(ctx context.Context, tag string) (*Player, error) {
	if v, ok := f.detail.Get(tag); ok {
		if p, ok := v.(*Player); ok {
			return p, nil
		}
	}
	p, err := f.client.GetPlayer(ctx, tag)
	if err != nil {
		return nil, err
	}
	f.detail.SetDefault(tag, p)
	return p, nil
}
