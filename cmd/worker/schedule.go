package main

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/hotlist/internal/jobs"
)

// Registrar is the part of *asynq.Scheduler used for warmups
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// registerWarmups schedules a cache refresh for every platform
func registerWarmups(s Registrar, platforms []string, every time.Duration) ([]string, error) {
	spec := "@every " + every.String()
	ids := make([]string, 0, len(platforms))
	for _, name := range platforms {
		task, err := jobs.NewRefreshTask(jobs.RefreshPayload{Platform: name})
		if err != nil {
			return nil, err
		}
		id, err := s.Register(spec, task, jobs.EnqueueOptions(every/2)...)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// asynqLogger routes asynq's internal logs through zerolog
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
