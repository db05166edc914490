package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"flowdash/internal/model"
	"flowdash/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEditor struct {
	state   *state.State
	reducer *state.Reducer
	err     error
}

func newFakeEditor() *fakeEditor {
	return &fakeEditor{
		state:   state.Initial(state.DefaultSnapshot(), model.Map[model.Workspace]{}, model.Map[model.Flow]{}),
		reducer: state.NewReducer(state.WithIDs(func() string { return "new-id" })),
	}
}

func (f *fakeEditor) Dispatch(ctx context.Context, action state.Action) (*state.State, error) {
	f.state = f.reducer.Reduce(f.state, action)
	return f.state, f.err
}

func (f *fakeEditor) Snapshot() *state.State { return f.state }

func (f *fakeEditor) ExportFlow(id string) ([]byte, error) {
	if !f.state.Flows.Has(id) {
		return nil, errors.New("not found")
	}
	return []byte("jtype: Flow\n"), nil
}

func newTestConn(hub *Hub) *Conn {
	conn := NewConn(nil, hub, "editor-1")
	hub.Register(conn)
	return conn
}

func receive(t *testing.T, conn *Conn) map[string]interface{} {
	t.Helper()
	select {
	case msg := <-conn.send:
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(msg, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHub_DeliversToSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx, zap.NewNop())
	go hub.Run()

	subscribed := newTestConn(hub)
	other := newTestConn(hub)

	subscribed.handleMessage(inbound{Type: "subscribe", Channel: "editor"})
	assert.Equal(t, "subscribed", receive(t, subscribed)["ack"])

	hub.Publish("editor", map[string]interface{}{"type": "state.changed", "seq": 7})

	msg := receive(t, subscribed)
	assert.Equal(t, "event", msg["type"])
	assert.Equal(t, "editor", msg["channel"])
	assert.EqualValues(t, 7, msg["seq"])
	assert.Equal(t, "state.changed", msg["data"].(map[string]interface{})["type"])

	select {
	case <-other.send:
		t.Fatal("unsubscribed connection received an event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	hub := NewHub(context.Background(), zap.NewNop())
	conn := newTestConn(hub)
	hub.Subscribe(conn, "editor")

	hub.unregister(conn)
	hub.unregister(conn)

	_, open := <-conn.send
	assert.False(t, open)
	assert.Empty(t, hub.subs)
}

func TestHub_Ping(t *testing.T) {
	hub := NewHub(context.Background(), zap.NewNop())
	conn := newTestConn(hub)

	conn.handleMessage(inbound{Type: "ping"})
	assert.Equal(t, "pong", receive(t, conn)["ack"])
}

type fakeStreams struct {
	acked  int64
	events []StreamEvent
}

func (f *fakeStreams) GetLastSequence(ctx context.Context, channel, connectionID string) (int64, error) {
	return f.acked, nil
}

func (f *fakeStreams) AcknowledgeSequence(ctx context.Context, channel, connectionID string, sequence int64) error {
	f.acked = sequence
	return nil
}

func (f *fakeStreams) ReplayEvents(ctx context.Context, channel string, sinceSeq int64, limit int64) ([]StreamEvent, error) {
	var out []StreamEvent
	for _, e := range f.events {
		if e.Sequence > sinceSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestHub_ResumeFromAcknowledged(t *testing.T) {
	hub := NewHub(context.Background(), zap.NewNop())
	streams := &fakeStreams{events: []StreamEvent{
		{Channel: "editor", Sequence: 1, Event: map[string]interface{}{"n": 1}},
		{Channel: "editor", Sequence: 2, Event: map[string]interface{}{"n": 2}},
	}}
	hub.SetStreamsProvider(streams)
	conn := newTestConn(hub)

	conn.handleMessage(inbound{Type: "ack", Channel: "editor", Seq: 1})
	assert.EqualValues(t, 1, streams.acked)

	conn.handleMessage(inbound{Type: "resume", Channel: "editor"})
	msg := receive(t, conn)
	assert.EqualValues(t, 2, msg["seq"])

	zero := int64(0)
	conn.handleMessage(inbound{Type: "resume", Channel: "editor", Since: &zero})
	assert.EqualValues(t, 1, receive(t, conn)["seq"])
	assert.EqualValues(t, 2, receive(t, conn)["seq"])
}

func TestCommandHandler_Dispatch(t *testing.T) {
	hub := NewHub(context.Background(), zap.NewNop())
	editor := newFakeEditor()
	hub.SetCommandHandler(NewCommandHandler(editor, zap.NewNop()))
	conn := newTestConn(hub)

	conn.handleMessage(inbound{
		Type: "cmd",
		Op:   "dispatch",
		ID:   "m1",
		Data: json.RawMessage(`{"type":"CREATE_NEW_FLOW"}`),
	})

	msg := receive(t, conn)
	assert.Equal(t, "response", msg["type"])
	assert.Equal(t, "m1", msg["id"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "new-id", data["selectedFlowId"])
	assert.Equal(t, model.DefaultWorkspaceID, data["selectedWorkspaceId"])
}

func TestCommandHandler_Errors(t *testing.T) {
	hub := NewHub(context.Background(), zap.NewNop())
	editor := newFakeEditor()
	hub.SetCommandHandler(NewCommandHandler(editor, zap.NewNop()))
	conn := newTestConn(hub)

	tests := []struct {
		op   string
		data string
		code string
	}{
		{"dispatch", `{}`, "invalid_input"},
		{"dispatch", `{"type":"DELETE_FLOW","payload":{"id":1}}`, "invalid_input"},
		{"export", `{"flowId":"missing"}`, "export_failed"},
		{"launch", `{}`, "unknown_command"},
	}
	for _, tt := range tests {
		conn.handleMessage(inbound{Type: "cmd", Op: tt.op, Data: json.RawMessage(tt.data)})
		msg := receive(t, conn)
		assert.Equal(t, "error", msg["type"], tt.op)
		assert.Equal(t, tt.code, msg["code"], tt.op)
	}

	editor.err = errors.New("disk full")
	conn.handleMessage(inbound{Type: "cmd", Op: "dispatch", Data: json.RawMessage(`{"type":"CREATE_NEW_FLOW"}`)})
	assert.Equal(t, "persist_failed", receive(t, conn)["code"])
}

func TestCommandHandler_SnapshotAndExport(t *testing.T) {
	hub := NewHub(context.Background(), zap.NewNop())
	hub.SetCommandHandler(NewCommandHandler(newFakeEditor(), zap.NewNop()))
	conn := newTestConn(hub)

	conn.handleMessage(inbound{Type: "cmd", Op: "snapshot"})
	msg := receive(t, conn)
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, model.DefaultWorkspaceID, data["selectedWorkspaceId"])
	assert.Contains(t, data["flows"], model.DefaultFlowID)

	conn.handleMessage(inbound{Type: "cmd", Op: "export", Data: json.RawMessage(`{"flowId":"_userFlow"}`)})
	msg = receive(t, conn)
	assert.Equal(t, "jtype: Flow\n", msg["data"].(map[string]interface{})["yaml"])
}
