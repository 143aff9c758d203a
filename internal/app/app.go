// Package app assembles the cache stack shared by the server, worker and CLI.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/cache"
	"github.com/briangreenhill/hotlist/internal/aggregator"
	"github.com/briangreenhill/hotlist/internal/config"
	"github.com/briangreenhill/hotlist/internal/providers"
	"github.com/briangreenhill/hotlist/internal/upstream"
)

// Stack is everything needed to resolve hot lists
type Stack struct {
	Memory       *cache.Memory
	Secondary    cache.Tier
	Orchestrator *cache.Orchestrator
	Client       *upstream.Client
	Registry     *providers.Registry
	Aggregator   *aggregator.Aggregator

	closers []func() error
}

// Build wires the tiers, orchestrator, upstream client and providers from cfg.
// The secondary tier is Redis when configured, else a disk cache, else disabled.
// extra options are applied to the upstream client after the config-derived ones.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, extra ...upstream.Option) (*Stack, error) {
	s := &Stack{}

	s.Memory = cache.NewMemory(
		cache.WithCapacity(cfg.Cache.MaxEntries),
		cache.WithJanitor(cfg.Cache.JanitorInterval),
	)
	s.closers = append(s.closers, s.Memory.Close)

	secondary, err := s.buildSecondary(ctx, cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Secondary = secondary

	s.Orchestrator = cache.NewOrchestrator(s.Memory, s.Secondary,
		cache.WithDefaultTTL(cfg.Cache.TTL),
		cache.WithLogger(logger.With().Str("component", "cache").Logger()),
	)

	clientOpts := []upstream.Option{
		upstream.WithHTTPClient(&http.Client{Transport: http.DefaultTransport}),
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithRetries(cfg.Upstream.Retries),
		upstream.WithUserAgent(cfg.Upstream.UserAgent),
		upstream.WithLogger(logger.With().Str("component", "upstream").Logger()),
	}
	s.Client = upstream.New(append(clientOpts, extra...)...)

	s.Registry = providers.Setup()
	s.Aggregator = aggregator.New(s.Registry, s.Client, s.Orchestrator, logger)

	logger.Info().
		Str("secondary", s.Secondary.Name()).
		Int("capacity", cfg.Cache.MaxEntries).
		Dur("ttl", cfg.Cache.TTL).
		Strs("platforms", s.Registry.List()).
		Msg("cache stack ready")
	return s, nil
}

func (s *Stack) buildSecondary(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Tier, error) {
	switch {
	case cfg.HasRedis():
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		r := cache.NewRedis(client,
			cache.WithPrefix(cfg.Redis.Prefix),
			cache.WithTimeout(cfg.Redis.Timeout),
		)
		s.closers = append(s.closers, r.Close)
		// An unreachable Redis degrades to primary-only; it is not fatal.
		if err := r.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable, continuing")
		}
		return r, nil
	case cfg.HasDiskCache():
		return cache.NewFileCache(cfg.Cache.Dir, nil)
	default:
		return cache.Disabled{}, nil
	}
}

// Close releases the janitor and any Redis connections
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
