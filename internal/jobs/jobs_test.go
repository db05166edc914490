package jobs

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"flowdash/internal/daemon"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProber struct {
	status   daemon.Status
	err      error
	endpoint string
}

func (f *fakeProber) Status(ctx context.Context, endpoint string) (daemon.Status, error) {
	f.endpoint = endpoint
	return f.status, f.err
}

type recordingSink struct {
	workspaceID string
	status      daemon.Status
	calls       int
	err         error
}

func (s *recordingSink) ApplyDaemonStatus(ctx context.Context, workspaceID string, status daemon.Status) error {
	s.calls++
	s.workspaceID = workspaceID
	s.status = status
	return s.err
}

func newTestServer(prober Prober, sink StatusSink) *JobServer {
	js := &JobServer{prober: prober, log: zap.NewNop()}
	js.SetStatusSink(sink)
	return js
}

func TestHandleDaemonProbe(t *testing.T) {
	prober := &fakeProber{status: daemon.Status{Connected: true, DaemonID: "d-1", JinaVersion: "2.0"}}
	sink := &recordingSink{}
	js := newTestServer(prober, sink)

	task := asynq.NewTask(TypeDaemonProbe, []byte(`{"workspaceId":"w1","endpoint":"http://d:8000"}`))
	require.NoError(t, js.mux().ProcessTask(context.Background(), task))

	assert.Equal(t, "http://d:8000", prober.endpoint)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, "w1", sink.workspaceID)
	assert.True(t, sink.status.Connected)
}

func TestHandleDaemonProbe_BadEndpointDisconnects(t *testing.T) {
	prober := &fakeProber{err: errors.New("daemon endpoint is empty")}
	sink := &recordingSink{}
	js := newTestServer(prober, sink)

	task := asynq.NewTask(TypeDaemonProbe, []byte(`{"workspaceId":"w1"}`))
	require.NoError(t, js.mux().ProcessTask(context.Background(), task))

	assert.Equal(t, 1, sink.calls)
	assert.False(t, sink.status.Connected)
}

func TestHandleDaemonProbe_MalformedPayloadSkipsRetry(t *testing.T) {
	sink := &recordingSink{}
	js := newTestServer(&fakeProber{}, sink)

	err := js.mux().ProcessTask(context.Background(), asynq.NewTask(TypeDaemonProbe, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Zero(t, sink.calls)
}

func TestHandleDaemonProbe_SinkFailureRetries(t *testing.T) {
	sink := &recordingSink{err: errors.New("storage down")}
	js := newTestServer(&fakeProber{}, sink)

	err := js.mux().ProcessTask(context.Background(), asynq.NewTask(TypeDaemonProbe, []byte(`{"workspaceId":"w1"}`)))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestStartRequiresSink(t *testing.T) {
	js := &JobServer{log: zap.NewNop()}
	assert.Error(t, js.Start())
}

func TestScheduleDaemonProbe(t *testing.T) {
	redisAddr := os.Getenv("TEST_REDIS_ADDR")
	if testing.Short() || redisAddr == "" {
		t.Skip("Skipping job scheduling test: TEST_REDIS_ADDR not set")
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	require.NoError(t, ScheduleDaemonProbe(client, "w1", "http://localhost:8000", time.Hour))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redisAddr})
	defer inspector.Close()
	tasks, err := inspector.ListScheduledTasks("default")
	require.NoError(t, err)

	found := false
	for _, task := range tasks {
		if task.Type == TypeDaemonProbe {
			found = true
			inspector.DeleteTask("default", task.ID)
		}
	}
	assert.True(t, found)
}
