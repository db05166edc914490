package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flowdash/internal/daemon"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeDaemonProbe = "daemon:probe"

// ProbePayload names the workspace to probe and the endpoint it had when the
// probe was scheduled
type ProbePayload struct {
	WorkspaceID string `json:"workspaceId"`
	Endpoint    string `json:"endpoint"`
}

// Prober queries a daemon
type Prober interface {
	Status(ctx context.Context, endpoint string) (daemon.Status, error)
}

// StatusSink receives probe outcomes
type StatusSink interface {
	ApplyDaemonStatus(ctx context.Context, workspaceID string, status daemon.Status) error
}

type JobServer struct {
	server *asynq.Server
	client *asynq.Client
	prober Prober
	sink   StatusSink
	log    *zap.Logger
}

func NewJobServer(redisAddr string, prober Prober, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server: server,
		client: client,
		prober: prober,
		log:    log,
	}, client
}

// SetStatusSink sets where probe outcomes go. It must be called before Start.
func (js *JobServer) SetStatusSink(sink StatusSink) {
	js.sink = sink
}

func (js *JobServer) Start() error {
	if js.sink == nil {
		return fmt.Errorf("status sink not set")
	}
	return js.server.Start(js.mux())
}

func (js *JobServer) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDaemonProbe, js.handleDaemonProbe)
	return mux
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

func (js *JobServer) handleDaemonProbe(ctx context.Context, t *asynq.Task) error {
	var p ProbePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// A malformed payload will never succeed
		return fmt.Errorf("invalid probe payload: %v: %w", err, asynq.SkipRetry)
	}

	status, err := js.prober.Status(ctx, p.Endpoint)
	if err != nil {
		js.log.Warn("Daemon probe skipped", zap.String("workspace_id", p.WorkspaceID), zap.Error(err))
		status = daemon.Status{}
	}

	if err := js.sink.ApplyDaemonStatus(ctx, p.WorkspaceID, status); err != nil {
		return fmt.Errorf("failed to apply daemon status: %w", err)
	}

	js.log.Info("Daemon probed",
		zap.String("workspace_id", p.WorkspaceID),
		zap.String("endpoint", p.Endpoint),
		zap.Bool("connected", status.Connected),
	)
	return nil
}

// Schedule jobs

func ScheduleDaemonProbe(client *asynq.Client, workspaceID, endpoint string, delay time.Duration) error {
	payload, err := json.Marshal(ProbePayload{WorkspaceID: workspaceID, Endpoint: endpoint})
	if err != nil {
		return fmt.Errorf("failed to encode probe payload: %w", err)
	}

	task := asynq.NewTask(TypeDaemonProbe, payload, asynq.MaxRetry(2), asynq.Timeout(30*time.Second))
	_, err = client.Enqueue(task, asynq.ProcessIn(delay))
	return err
}
