package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flowdash/internal/auth"
	"flowdash/internal/daemon"
	"flowdash/internal/model"
	"flowdash/internal/pubsub"
	"flowdash/internal/service"
	"flowdash/internal/storage"
	"flowdash/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const definition = `jtype: Flow
executors:
  - name: encoder
  - name: indexer
`

func setupTestServer(t *testing.T, opts ...service.Option) (*httptest.Server, *service.EditorService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zap.NewNop()
	hub := ws.NewHub(ctx, logger)
	go hub.Run()

	bus := pubsub.New(nil, "", logger)
	bus.SetWSHub(hub)

	editor := service.NewEditorService(ctx, storage.NewPersister(storage.NewMemoryKV(), logger), bus, logger, opts...)
	hub.SetCommandHandler(ws.NewCommandHandler(editor, logger))

	r := chi.NewRouter()
	r.Mount("/v1", Routes(Dependencies{
		Editor: editor,
		Hub:    hub,
		Log:    logger,
		Auth:   auth.NewJWTConfig("test-secret"),
		Import: storage.DefaultImportPolicy(1),
	}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, editor
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestGetState(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/state")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SelectedWorkspaceID string                     `json:"selectedWorkspaceId"`
		Workspaces          map[string]json.RawMessage `json:"workspaces"`
	}
	decode(t, resp, &body)
	assert.Equal(t, model.DefaultWorkspaceID, body.SelectedWorkspaceID)
	assert.Contains(t, body.Workspaces, model.DefaultWorkspaceID)
}

func TestPostAction(t *testing.T) {
	srv, editor := setupTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/actions", map[string]interface{}{"type": "CREATE_NEW_FLOW"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sel SelectionResponse
	decode(t, resp, &sel)
	assert.Equal(t, editor.Snapshot().SelectedFlowID(), sel.SelectedFlowID)
	assert.NotEqual(t, model.DefaultFlowID, sel.SelectedFlowID)

	resp = postJSON(t, srv.URL+"/v1/actions", map[string]interface{}{"type": "DELETE_FLOW", "payload": sel.SelectedFlowID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &sel)
	assert.Equal(t, model.DefaultFlowID, sel.SelectedFlowID)
}

func TestPostAction_Errors(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/actions", map[string]interface{}{"payload": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/actions", map[string]interface{}{"type": "ADD_LINK", "payload": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, resp, &errResp)
	assert.Equal(t, "invalid_payload", errResp.Code)

	resp = postJSON(t, srv.URL+"/v1/actions", map[string]interface{}{"type": "ZOOM_IN"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var sel SelectionResponse
	decode(t, resp, &sel)
	assert.True(t, sel.Ignored)
}

func TestWorkspaceAndFlowLookups(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/workspaces/" + model.DefaultWorkspaceID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var workspace WorkspaceResponse
	decode(t, resp, &workspace)
	assert.Equal(t, model.DefaultWorkspaceName, workspace.Name)
	assert.Equal(t, []string{model.DefaultFlowID}, workspace.Flows)

	resp, err = http.Get(srv.URL + "/v1/flows/" + model.DefaultFlowID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var flow FlowResponse
	decode(t, resp, &flow)
	assert.Equal(t, model.DefaultFlowName, flow.Name)
	assert.True(t, flow.FlowChart.HasNode(model.GatewayNodeID))

	resp, err = http.Get(srv.URL + "/v1/flows?workspaceId=" + model.DefaultWorkspaceID)
	require.NoError(t, err)
	var flows map[string]json.RawMessage
	decode(t, resp, &flows)
	assert.Len(t, flows, 1)

	for _, path := range []string{"/v1/workspaces/nope", "/v1/flows/nope", "/v1/flows/nope/export"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestImportAndExport(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/flows/import", "application/x-yaml", strings.NewReader(definition))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var imported ImportResponse
	decode(t, resp, &imported)
	assert.Equal(t, model.DefaultWorkspaceID, imported.WorkspaceID)

	resp, err = http.Get(srv.URL + "/v1/flows/" + imported.FlowID + "/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Custom_Flow_2.yml")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "name: encoder")
	assert.Contains(t, string(body), "name: indexer")
}

func TestImportMultipart(t *testing.T) {
	srv, _ := setupTestServer(t)

	upload := func(name string, content string) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		part.Write([]byte(content))
		require.NoError(t, mw.Close())

		resp, err := http.Post(srv.URL+"/v1/flows/import", mw.FormDataContentType(), &buf)
		require.NoError(t, err)
		return resp
	}

	resp := upload("search.yml", definition)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = upload("search.json", definition)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	decode(t, resp, &errResp)
	assert.Equal(t, "policy_violation", errResp.Code)

	resp = upload("broken.yml", "executors: 12")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &errResp)
	assert.Equal(t, "invalid_definition", errResp.Code)
}

type stubProber struct{}

func (stubProber) Status(ctx context.Context, endpoint string) (daemon.Status, error) {
	return daemon.Status{Connected: true, DaemonID: "d-1", JinaVersion: "2.0"}, nil
}

func TestConnectWorkspace(t *testing.T) {
	srv, _ := setupTestServer(t, service.WithProber(stubProber{}))

	resp := postJSON(t, srv.URL+"/v1/workspaces/"+model.DefaultWorkspaceID+"/connect", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/actions", map[string]interface{}{
		"type":    "UPDATE_SELECTED_WORKSPACE",
		"payload": map[string]interface{}{"daemon_endpoint": "http://localhost:8000"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/workspaces/"+model.DefaultWorkspaceID+"/connect", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, true, body["isConnected"])
	assert.Equal(t, "d-1", body["daemon_id"])

	resp = postJSON(t, srv.URL+"/v1/workspaces/nope/connect", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestWebSocket_EventsAndCommands(t *testing.T) {
	srv, _ := setupTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	header := http.Header{}
	header.Set(auth.EditorHeader, "editor-1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]interface{} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "subscribe", "channel": pubsub.EditorChannel}))
	assert.Equal(t, "subscribed", read()["ack"])

	resp := postJSON(t, srv.URL+"/v1/actions", map[string]interface{}{"type": "CREATE_NEW_WORKSPACE"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	event := read()
	assert.Equal(t, "event", event["type"])
	data := event["data"].(map[string]interface{})
	assert.Equal(t, "CREATE_NEW_WORKSPACE", data["action"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "cmd",
		"op":   "dispatch",
		"id":   "m1",
		"data": map[string]interface{}{"type": "LOAD_WORKSPACE", "payload": model.DefaultWorkspaceID},
	}))

	// The state change event and the command response may arrive in either order
	var response map[string]interface{}
	for i := 0; i < 2; i++ {
		msg := read()
		if msg["type"] == "response" {
			response = msg
		}
	}
	require.NotNil(t, response)
	assert.Equal(t, "m1", response["id"])
	assert.Equal(t, model.DefaultWorkspaceID, response["data"].(map[string]interface{})["selectedWorkspaceId"])
}
