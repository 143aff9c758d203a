package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/internal/aggregator"
	"github.com/briangreenhill/hotlist/internal/hotlist"
)

// Fetcher resolves a platform list; *aggregator.Aggregator satisfies it
type Fetcher interface {
	Fetch(ctx context.Context, name string, opts aggregator.FetchOptions) (*hotlist.List, error)
}

// NewRefreshHandler returns the asynq handler for TaskRefreshPlatform. It
// always bypasses the cache so both tiers receive a fresh list.
func NewRefreshHandler(f Fetcher, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p RefreshPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad refresh payload")
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}

		taskID, _ := asynq.GetTaskID(ctx)
		log := logger.With().Str("platform", p.Platform).Str("task_id", taskID).Logger()
		log.Info().Msg("refresh start")
		start := time.Now()

		list, err := f.Fetch(ctx, p.Platform, aggregator.FetchOptions{Query: p.Query, Bypass: true})
		duration := time.Since(start)
		if err != nil {
			if platformerrors.IsRetryable(err) {
				log.Warn().Err(err).Dur("duration", duration).Msg("retryable refresh error")
				return err
			}
			log.Error().Err(err).Dur("duration", duration).Msg("permanent refresh error, dropping task")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		log.Info().Int("items", list.Total).Dur("duration", duration).Msg("refresh done")
		return nil
	}
}
