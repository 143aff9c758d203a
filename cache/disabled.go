package cache

import "context"

// Disabled stands in for an unconfigured secondary tier. Every lookup is a
// miss and every write is dropped without I/O.
type Disabled struct{}

// Name implements Tier
func (Disabled) Name() string { return "disabled" }

// Get implements Tier
func (Disabled) Get(context.Context, Key) Lookup { return Miss() }

// Set implements Tier
func (Disabled) Set(context.Context, Key, Entry) error { return nil }

// Invalidate implements Tier
func (Disabled) Invalidate(context.Context, Key) error { return nil }

var _ Tier = Disabled{}
