package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// File is a disk-backed secondary tier for single-node deployments without
// Redis. Each key lives in its own JSON file.
type File struct {
	dir   string
	clock Clock
}

// fileRecord is the on-disk envelope; Key guards against name collisions
type fileRecord struct {
	Key Key `json:"key"`
	Entry
}

// NewFileCache creates a file tier rooted at dir
func NewFileCache(dir string, clock Clock) (*File, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock
	}
	return &File{dir: dir, clock: clock}, nil
}

// Name implements Tier
func (fc *File) Name() string { return "file" }

// Get implements Tier
func (fc *File) Get(_ context.Context, key Key) Lookup {
	path := fc.path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Miss()
	}
	if err != nil {
		return Unavailable(fmt.Errorf("%w: read %s: %w", ErrSecondaryUnavailable, path, err))
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Key != key {
		return Miss()
	}

	if rec.Expired(fc.clock.Now()) {
		_ = os.Remove(path)
		return Miss()
	}
	return Hit(&rec.Entry)
}

// Set implements Tier
func (fc *File) Set(_ context.Context, key Key, entry Entry) error {
	entry.InsertedAt = fc.clock.Now()
	data, err := json.Marshal(&fileRecord{Key: key, Entry: entry})
	if err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	path := fc.path(key)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrSecondaryUnavailable, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrSecondaryUnavailable, err)
	}
	return nil
}

// Invalidate implements Tier
func (fc *File) Invalidate(_ context.Context, key Key) error {
	err := os.Remove(fc.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrSecondaryUnavailable, err)
	}
	return nil
}

// path maps a key to a fixed-length file name
func (fc *File) path(key Key) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(fc.dir, hex.EncodeToString(sum[:])+".json")
}

var _ Tier = (*File)(nil)
