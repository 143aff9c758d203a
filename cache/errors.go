package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Memory.Set after Close
	ErrClosed = errors.New("cache is closed")

	// ErrSecondaryUnavailable marks a secondary tier that could not be reached
	ErrSecondaryUnavailable = errors.New("secondary cache unavailable")
)

// FetchError is returned by Resolve when the upstream fetch failed. It is
// shared by every caller waiting on the same key.
type FetchError struct {
	Key Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
