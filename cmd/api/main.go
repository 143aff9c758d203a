// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/internal/app"
	"github.com/briangreenhill/hotlist/internal/config"
	"github.com/briangreenhill/hotlist/internal/http/routes"
	"github.com/briangreenhill/hotlist/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}

	// Logger
	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("build logger")
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

	// Queue for on-demand refresh
	var queue routes.Enqueuer
	if cfg.HasQueue() {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddr})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close asynq client")
			}
		}()
		queue = client
	}

	s := routes.New(routes.ServerOptions{
		Aggregator:   stack.Aggregator,
		Memory:       stack.Memory,
		Queue:        queue,
		Logger:       logger,
		RefreshDedup: time.Minute,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("queue", cfg.HasQueue()).Msg("starting api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
