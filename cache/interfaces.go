// Package cache provides the two-tier request cache that sits between route
// handlers and upstream HTTP calls. A bounded in-memory tier answers hot keys,
// an optional remote tier survives restarts and is shared between processes,
// and an Orchestrator coordinates both so that concurrent callers for the same
// key trigger a single upstream fetch.
package cache

import (
	"context"
	"time"
)

// Entry represents a cached payload with metadata
type Entry struct {
	Value      []byte        `json:"value"`
	FetchedAt  time.Time     `json:"fetched_at"`
	InsertedAt time.Time     `json:"inserted_at"`
	TTL        time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at now.
// A non-positive TTL never expires.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return !now.Before(e.InsertedAt.Add(e.TTL))
}

func (e *Entry) clone() *Entry {
	out := *e
	out.Value = cloneBytes(e.Value)
	return &out
}

// Status tags the outcome of a tier lookup
type Status int

const (
	// StatusMiss means the tier answered and does not hold a live entry.
	StatusMiss Status = iota
	// StatusHit means the tier returned a live entry.
	StatusHit
	// StatusUnavailable means the tier could not answer at all.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "miss"
	}
}

// Lookup is the result of Tier.Get. Entry is set only for StatusHit and Err
// only for StatusUnavailable.
type Lookup struct {
	Status Status
	Entry  *Entry
	Err    error
}

// Hit builds a successful lookup
func Hit(e *Entry) Lookup { return Lookup{Status: StatusHit, Entry: e} }

// Miss builds an empty lookup
func Miss() Lookup { return Lookup{Status: StatusMiss} }

// Unavailable builds a lookup for a tier that failed to answer
func Unavailable(err error) Lookup { return Lookup{Status: StatusUnavailable, Err: err} }

// Tier is one level of the cache hierarchy
type Tier interface {
	// Name identifies the tier in logs and stats (e.g. "memory", "redis")
	Name() string

	// Get retrieves a live entry by key
	Get(ctx context.Context, key Key) Lookup

	// Set stores a copy of entry under key. The tier stamps InsertedAt and
	// honours entry.TTL on its own.
	Set(ctx context.Context, key Key, entry Entry) error

	// Invalidate removes key if present
	Invalidate(ctx context.Context, key Key) error
}

// Clock abstracts time so TTL behaviour can be tested
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock
var SystemClock Clock = systemClock{}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
