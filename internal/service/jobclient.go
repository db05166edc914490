package service

import (
	"time"

	"flowdash/internal/jobs"

	"github.com/hibiken/asynq"
)

// JobClient interface for scheduling background jobs
type JobClient interface {
	ScheduleDaemonProbe(workspaceID, endpoint string, delay time.Duration) error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) ScheduleDaemonProbe(workspaceID, endpoint string, delay time.Duration) error {
	return jobs.ScheduleDaemonProbe(c.client, workspaceID, endpoint, delay)
}
