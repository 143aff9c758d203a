// Package aggregator resolves platform hot lists through the cache.
package aggregator

import (
	"context"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/cache"
	"github.com/briangreenhill/hotlist/internal/hotlist"
	"github.com/briangreenhill/hotlist/internal/providers"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

// Doer performs upstream requests; *upstream.Client satisfies it
type Doer interface {
	Do(ctx context.Context, req upstream.Request) ([]byte, error)
}

// FetchOptions controls a single Fetch
type FetchOptions struct {
	Query  providers.Query
	Bypass bool
	// Limit truncates the served list; it does not affect the cache key
	Limit int
	TTL   time.Duration
}

// Aggregator serves hot lists for registered platforms
type Aggregator struct {
	registry *providers.Registry
	client   Doer
	cache    *cache.Orchestrator
	logger   zerolog.Logger
}

// New creates a new Aggregator
func New(registry *providers.Registry, client Doer, orchestrator *cache.Orchestrator, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		client:   client,
		cache:    orchestrator,
		logger:   logger,
	}
}

// Fetch resolves the hot list for the named platform
func (a *Aggregator) Fetch(ctx context.Context, name string, opts FetchOptions) (*hotlist.List, error) {
	p, ok := a.registry.Get(name)
	if !ok {
		return nil, platformerrors.WithContext(
			platformerrors.Newf(platformerrors.CodeNotFound, "unknown platform %q", name),
			"platform", name,
		)
	}

	req := p.Request(opts.Query)
	key := req.Key()

	items, v, err := cache.ResolveJSON(ctx, a.cache, key, func(ctx context.Context) ([]hotlist.Item, error) {
		body, err := a.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		return p.Parse(body)
	}, cache.Options{Bypass: opts.Bypass, TTL: opts.TTL})
	if err != nil {
		a.logger.Error().Err(err).Str("platform", name).Str("key", string(key)).Msg("hot list fetch failed")
		return nil, err
	}

	a.logger.Debug().
		Str("platform", name).
		Str("source", string(v.Source)).
		Bool("shared", v.Shared).
		Int("items", len(items)).
		Msg("hot list resolved")

	list := &hotlist.List{
		Info:       p.Info(),
		FromCache:  v.FromCache(),
		UpdateTime: v.FetchedAt,
		Data:       items,
	}
	if list.Data == nil {
		list.Data = []hotlist.Item{}
	}
	list.Truncate(opts.Limit)
	return list, nil
}

// Invalidate drops the cached list for a platform and query
func (a *Aggregator) Invalidate(ctx context.Context, name string, q providers.Query) error {
	p, ok := a.registry.Get(name)
	if !ok {
		return platformerrors.Newf(platformerrors.CodeNotFound, "unknown platform %q", name)
	}
	return a.cache.Invalidate(ctx, p.Request(q).Key())
}

// Has reports whether name is a registered platform
func (a *Aggregator) Has(name string) bool {
	_, ok := a.registry.Get(name)
	return ok
}

// Platforms lists the registered platform names
func (a *Aggregator) Platforms() []string {
	return a.registry.List()
}

// Infos lists the info of every registered platform
func (a *Aggregator) Infos() []hotlist.Info {
	return a.registry.Infos()
}

// Stats returns the cache counters
func (a *Aggregator) Stats() cache.Stats {
	return a.cache.Stats()
}
