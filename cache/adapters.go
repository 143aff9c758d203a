package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResolveJSON adapts Resolve to typed values. fetch results are stored as
// JSON; cached bytes are decoded into a fresh T for every caller.
//
// A cached body that no longer decodes is invalidated and fetched again once.
// If the fresh body fails too, the decode error is returned as a *FetchError.
func ResolveJSON[T any](ctx context.Context, o *Orchestrator, key Key, fetch func(ctx context.Context) (T, error), opts Options) (T, *Value, error) {
	var zero T

	raw := func(ctx context.Context) ([]byte, error) {
		out, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}

	v, err := o.Resolve(ctx, key, raw, opts)
	if err != nil {
		return zero, nil, err
	}

	out, err := decodeJSON[T](v.Data)
	if err == nil {
		return out, v, nil
	}
	if v.FromCache() {
		o.logger.Warn().Err(err).Str("key", string(key)).Str("source", string(v.Source)).Msg("cached entry does not decode, refetching")
		_ = o.Invalidate(ctx, key)

		v, err = o.Resolve(ctx, key, raw, Options{Bypass: true, TTL: opts.TTL})
		if err != nil {
			return zero, nil, err
		}
		if out, err = decodeJSON[T](v.Data); err == nil {
			return out, v, nil
		}
	}

	// The undecodable body was just written to both tiers.
	_ = o.Invalidate(ctx, key)
	return zero, nil, &FetchError{Key: key, Err: fmt.Errorf("decode fetched body: %w", err)}
}

func decodeJSON[T any](data []byte) (T, error) {
	var out T
	err := json.Unmarshal(data, &out)
	return out, err
}
