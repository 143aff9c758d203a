package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/hotlist/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Cache.TTL = time.Minute
	cfg.Cache.MaxEntries = 10
	cfg.Cache.JanitorInterval = time.Minute
	cfg.Redis.Timeout = 100 * time.Millisecond
	cfg.Redis.Prefix = "test:"
	cfg.Upstream.Timeout = time.Second
	return cfg
}

func TestBuildWithoutSecondary(t *testing.T) {
	s, err := Build(context.Background(), baseConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "disabled", s.Secondary.Name())
	assert.Equal(t, 10, s.Memory.Capacity())
	assert.Equal(t, time.Minute, s.Orchestrator.DefaultTTL())
	assert.Contains(t, s.Aggregator.Platforms(), "weibo")
}

func TestBuildWithDiskCache(t *testing.T) {
	cfg := baseConfig()
	cfg.Cache.Dir = t.TempDir()

	s, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "file", s.Secondary.Name())
}

func TestBuildWithUnreachableRedis(t *testing.T) {
	cfg := baseConfig()
	cfg.Redis.Addr = "127.0.0.1:1"

	s, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "redis", s.Secondary.Name())
	assert.NoError(t, s.Close())
}
