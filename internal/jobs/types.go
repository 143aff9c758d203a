package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskRefreshPlatform = "hotlist:refresh"

// QueueRefresh is the asynq queue refresh tasks run on
const QueueRefresh = "refresh"

// RefreshPayload selects the list to refresh. asynq.Unique hashes the
// payload, so it must hold nothing per-request; correlation ids travel as
// the task id instead.
type RefreshPayload struct {
	Platform string            `json:"platform"`
	Query    map[string]string `json:"query,omitempty"`
}

// NewRefreshTask builds a refresh task for one platform
func NewRefreshTask(p RefreshPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefreshPlatform, payload), nil
}

// EnqueueOptions are the defaults for refresh tasks. Unique keeps repeated
// triggers for the same payload from piling up.
func EnqueueOptions(uniqueFor time.Duration) []asynq.Option {
	opts := []asynq.Option{
		asynq.Queue(QueueRefresh),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	}
	if uniqueFor > 0 {
		opts = append(opts, asynq.Unique(uniqueFor))
	}
	return opts
}
