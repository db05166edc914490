package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowdash/internal/model"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name    string
		typ     string
		payload string
		want    Action
	}{
		{"create without payload", "CREATE_NEW_FLOW", "", CreateFlow{}},
		{"create with source", "CREATE_NEW_FLOW", `{"source":"jtype: Flow"}`, CreateFlow{Source: "jtype: Flow"}},
		{"import", "IMPORT_FLOW", `"jtype: Flow"`, ImportFlow{Source: "jtype: Flow"}},
		{"duplicate null", "DUPLICATE_FLOW", `null`, DuplicateFlow{}},
		{"delete flow", "DELETE_FLOW", `"f1"`, DeleteFlow{ID: "f1"}},
		{"load flow", "LOAD_FLOW", `"f1"`, LoadFlow{ID: "f1"}},
		{"delete node", "DELETE_NODE", `"n1"`, DeleteNode{NodeID: "n1"}},
		{"add link", "ADD_LINK", `{"source":"a","target":"b"}`, AddLink{Source: "a", Target: "b"}},
		{"delete link by id", "DELETE_LINK", `"e1"`, DeleteLink{EdgeID: "e1"}},
		{"delete link by connection", "DELETE_LINK", `{"source":"a","target":"b"}`,
			DeleteLink{Connection: &Connection{Source: "a", Target: "b"}}},
		{"update node data", "UPDATE_NODE_DATA", `{"nodeId":"a","nodeDataUpdate":{"replicas":2}}`,
			UpdateNodeData{NodeID: "a", Data: model.NodeData{"replicas": float64(2)}}},
		{"create workspace", "CREATE_NEW_WORKSPACE", "", CreateNewWorkspace{}},
		{"delete workspace", "DELETE_WORKSPACE", `"w1"`, DeleteWorkspace{ID: "w1"}},
		{"daemon status", "SET_DAEMON_STATUS", `{"workspaceId":"w1","isConnected":true,"daemonId":"d"}`,
			SetDaemonStatus{WorkspaceID: "w1", IsConnected: true, DaemonID: "d"}},
		{"unknown", "RESIZE_CANVAS", `{}`, Unknown{Name: "RESIZE_CANVAS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction(tt.typ, json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAction_PartialUpdates(t *testing.T) {
	got, err := DecodeAction("UPDATE_SELECTED_WORKSPACE", json.RawMessage(`{"daemon_endpoint":"http://d:8000","isConnected":false}`))
	require.NoError(t, err)

	update := got.(UpdateSelectedWorkspace).Update
	require.NotNil(t, update.DaemonEndpoint)
	assert.Equal(t, "http://d:8000", *update.DaemonEndpoint)
	require.NotNil(t, update.IsConnected)
	assert.False(t, *update.IsConnected)
	assert.Nil(t, update.Name)
	assert.Nil(t, update.Files)
}

func TestDecodeAction_RejectsMalformedPayload(t *testing.T) {
	_, err := DecodeAction("DELETE_FLOW", json.RawMessage(`{"id":1}`))
	assert.Error(t, err)

	_, err = DecodeAction("ADD_LINK", nil)
	assert.Error(t, err)

	_, err = DecodeAction("DELETE_LINK", json.RawMessage(`42`))
	assert.Error(t, err)
}
