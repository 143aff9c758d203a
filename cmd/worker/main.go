package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/internal/app"
	"github.com/briangreenhill/hotlist/internal/config"
	"github.com/briangreenhill/hotlist/internal/jobs"
	"github.com/briangreenhill/hotlist/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("build logger")
	}
	if !cfg.HasQueue() {
		logger.Fatal().Msg("QUEUE_REDIS_ADDR or REDIS_ADDR is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build cache stack")
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error().Err(err).Msg("close cache stack")
		}
	}()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddr}
	qlog := asynqLogger{logger.With().Str("component", "asynq").Logger()}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			jobs.QueueRefresh: 10, // higher priority
			"default":         5,
		},
		Logger: qlog,
	})
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskRefreshPlatform, jobs.NewRefreshHandler(stack.Aggregator, logger))

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: qlog})
	ids, err := registerWarmups(scheduler, stack.Registry.List(), cfg.Queue.WarmInterval)
	if err != nil {
		logger.Fatal().Err(err).Msg("register warmups")
	}
	logger.Info().Int("entries", len(ids)).Dur("interval", cfg.Queue.WarmInterval).Msg("warmups scheduled")

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}

	logger.Info().Msg("worker running")
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
}
