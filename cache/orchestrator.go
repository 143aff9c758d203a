package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// FetchFunc retrieves fresh data from upstream
type FetchFunc func(ctx context.Context) ([]byte, error)

// Options controls a single Resolve call
type Options struct {
	// Bypass skips both tiers and forces an independent upstream fetch.
	// The result is still written back to both tiers.
	Bypass bool
	// TTL for entries written by this call; 0 uses the orchestrator default.
	TTL time.Duration
}

// Source names where a resolved value came from
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceUpstream  Source = "upstream"
)

// Value is the result of Resolve
type Value struct {
	Data      []byte
	Source    Source
	FetchedAt time.Time
	// Shared is true when the caller received another caller's fetch result
	Shared bool
}

// FromCache reports whether no upstream call was made for this value
func (v *Value) FromCache() bool {
	return v.Source != SourceUpstream
}

// Stats is a snapshot of orchestrator counters
type Stats struct {
	PrimaryHits     uint64 `json:"primary_hits"`
	SecondaryHits   uint64 `json:"secondary_hits"`
	Misses          uint64 `json:"misses"`
	Bypasses        uint64 `json:"bypasses"`
	Fetches         uint64 `json:"fetches"`
	SharedWaits     uint64 `json:"shared_waits"`
	FetchErrors     uint64 `json:"fetch_errors"`
	SecondaryErrors uint64 `json:"secondary_errors"`
}

type counters struct {
	primaryHits     atomic.Uint64
	secondaryHits   atomic.Uint64
	misses          atomic.Uint64
	bypasses        atomic.Uint64
	fetches         atomic.Uint64
	sharedWaits     atomic.Uint64
	fetchErrors     atomic.Uint64
	secondaryErrors atomic.Uint64
}

// Orchestrator coordinates the primary and secondary tiers and deduplicates
// concurrent fetches for the same key.
type Orchestrator struct {
	primary   Tier
	secondary Tier
	ttl       time.Duration
	clock     Clock
	logger    zerolog.Logger

	flights singleflight.Group
	stats   counters
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithDefaultTTL sets the TTL used when Options.TTL is zero
func WithDefaultTTL(ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithLogger attaches a logger; tier failures are reported at warn level
func WithLogger(l zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithOrchestratorClock replaces the clock used to stamp FetchedAt
func WithOrchestratorClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = c }
}

// NewOrchestrator wires the tiers together. A nil secondary disables the
// second tier.
func NewOrchestrator(primary, secondary Tier, opts ...OrchestratorOption) *Orchestrator {
	if primary == nil {
		primary = NewMemory()
	}
	if secondary == nil {
		secondary = Disabled{}
	}
	o := &Orchestrator{
		primary:   primary,
		secondary: secondary,
		ttl:       DefaultTTL,
		clock:     SystemClock,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Resolve returns the value for key, consulting the primary tier, then the
// secondary tier, then fetch. Only fetch failures (as *FetchError) and the
// caller's own context errors are returned.
func (o *Orchestrator) Resolve(ctx context.Context, key Key, fetch FetchFunc, opts Options) (*Value, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = o.ttl
	}

	if opts.Bypass {
		o.stats.bypasses.Add(1)
		return o.fetchAndStore(ctx, key, fetch, ttl)
	}

	if v, ok := o.fromPrimary(ctx, key); ok {
		return v, nil
	}
	if v, ok := o.fromSecondary(ctx, key, ttl); ok {
		return v, nil
	}

	o.stats.misses.Add(1)
	return o.fetchShared(ctx, key, fetch, ttl)
}

// Invalidate drops key from both tiers
func (o *Orchestrator) Invalidate(ctx context.Context, key Key) error {
	if err := o.primary.Invalidate(ctx, key); err != nil {
		return err
	}
	if err := o.secondary.Invalidate(ctx, key); err != nil {
		o.stats.secondaryErrors.Add(1)
		o.logger.Warn().Err(err).Str("key", string(key)).Str("tier", o.secondary.Name()).Msg("secondary invalidate failed")
	}
	return nil
}

// Stats returns a snapshot of the counters
func (o *Orchestrator) Stats() Stats {
	return Stats{
		PrimaryHits:     o.stats.primaryHits.Load(),
		SecondaryHits:   o.stats.secondaryHits.Load(),
		Misses:          o.stats.misses.Load(),
		Bypasses:        o.stats.bypasses.Load(),
		Fetches:         o.stats.fetches.Load(),
		SharedWaits:     o.stats.sharedWaits.Load(),
		FetchErrors:     o.stats.fetchErrors.Load(),
		SecondaryErrors: o.stats.secondaryErrors.Load(),
	}
}

// DefaultTTL returns the TTL applied when Options.TTL is zero
func (o *Orchestrator) DefaultTTL() time.Duration {
	return o.ttl
}

func (o *Orchestrator) fromPrimary(ctx context.Context, key Key) (*Value, bool) {
	res := o.primary.Get(ctx, key)
	if res.Status != StatusHit {
		return nil, false
	}
	o.stats.primaryHits.Add(1)
	return &Value{Data: res.Entry.Value, Source: SourcePrimary, FetchedAt: res.Entry.FetchedAt}, true
}

func (o *Orchestrator) fromSecondary(ctx context.Context, key Key, ttl time.Duration) (*Value, bool) {
	res := o.secondary.Get(ctx, key)
	switch res.Status {
	case StatusHit:
		o.stats.secondaryHits.Add(1)
		e := Entry{Value: res.Entry.Value, FetchedAt: res.Entry.FetchedAt, TTL: ttl}
		if err := o.primary.Set(ctx, key, e); err != nil {
			o.logger.Warn().Err(err).Str("key", string(key)).Msg("primary set failed")
		}
		return &Value{Data: cloneBytes(res.Entry.Value), Source: SourceSecondary, FetchedAt: res.Entry.FetchedAt}, true
	case StatusUnavailable:
		o.stats.secondaryErrors.Add(1)
		o.logger.Warn().Err(res.Err).Str("key", string(key)).Str("tier", o.secondary.Name()).Msg("secondary lookup failed, treating as miss")
	}
	return nil, false
}

// fetchShared runs at most one fetch per key. Waiters whose context ends stop
// waiting; the fetch itself runs to completion on a context detached from
// any single caller.
func (o *Orchestrator) fetchShared(ctx context.Context, key Key, fetch FetchFunc, ttl time.Duration) (*Value, error) {
	detached := context.WithoutCancel(ctx)
	ch := o.flights.DoChan(string(key), func() (any, error) {
		// A flight that finished between our primary miss and this
		// registration has already filled the primary tier. The caller was
		// counted as a miss, so this is not a primary hit.
		if res := o.primary.Get(detached, key); res.Status == StatusHit {
			return &Value{Data: res.Entry.Value, Source: SourcePrimary, FetchedAt: res.Entry.FetchedAt}, nil
		}
		return o.fetchAndStore(detached, key, fetch, ttl)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			o.stats.sharedWaits.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		v := *res.Val.(*Value)
		v.Data = cloneBytes(v.Data)
		v.Shared = res.Shared
		return &v, nil
	}
}

func (o *Orchestrator) fetchAndStore(ctx context.Context, key Key, fetch FetchFunc, ttl time.Duration) (*Value, error) {
	o.stats.fetches.Add(1)
	data, err := fetch(ctx)
	if err != nil {
		o.stats.fetchErrors.Add(1)
		return nil, &FetchError{Key: key, Err: err}
	}

	e := Entry{Value: data, FetchedAt: o.clock.Now(), TTL: ttl}
	if err := o.primary.Set(ctx, key, e); err != nil {
		o.logger.Warn().Err(err).Str("key", string(key)).Msg("primary set failed")
	}
	if err := o.secondary.Set(ctx, key, e); err != nil {
		o.stats.secondaryErrors.Add(1)
		o.logger.Warn().Err(err).Str("key", string(key)).Str("tier", o.secondary.Name()).Msg("secondary set failed")
	}

	o.logger.Debug().Str("key", string(key)).Dur("ttl", ttl).Int("bytes", len(data)).Msg("fetched upstream")
	return &Value{Data: cloneBytes(data), Source: SourceUpstream, FetchedAt: e.FetchedAt}, nil
}
