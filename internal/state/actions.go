package state

import (
	"bytes"
	"encoding/json"
	"fmt"

	"flowdash/internal/model"
)

// ActionType names an editor action
type ActionType string

const (
	ActionCreateFlow              ActionType = "CREATE_NEW_FLOW"
	ActionDuplicateFlow           ActionType = "DUPLICATE_FLOW"
	ActionImportFlow              ActionType = "IMPORT_FLOW"
	ActionDeleteFlow              ActionType = "DELETE_FLOW"
	ActionUpdateSelectedFlow      ActionType = "UPDATE_SELECTED_FLOW"
	ActionSetFlowArguments        ActionType = "SET_FLOW_ARGUMENTS"
	ActionLoadFlow                ActionType = "LOAD_FLOW"
	ActionUpdateNode              ActionType = "UPDATE_NODE"
	ActionUpdateNodeData          ActionType = "UPDATE_NODE_DATA"
	ActionAddNode                 ActionType = "ADD_NODE"
	ActionDeleteNode              ActionType = "DELETE_NODE"
	ActionAddLink                 ActionType = "ADD_LINK"
	ActionDeleteLink              ActionType = "DELETE_LINK"
	ActionLoadWorkspace           ActionType = "LOAD_WORKSPACE"
	ActionCreateNewWorkspace      ActionType = "CREATE_NEW_WORKSPACE"
	ActionUpdateSelectedWorkspace ActionType = "UPDATE_SELECTED_WORKSPACE"
	ActionDeleteWorkspace         ActionType = "DELETE_WORKSPACE"
	ActionSetDaemonStatus         ActionType = "SET_DAEMON_STATUS"
)

// Action is one editor transition request
type Action interface {
	Type() ActionType
}

// CreateFlow adds a flow to the selected workspace and selects it. Source is
// an optional pipeline definition; ID is generated when empty.
type CreateFlow struct {
	Source string `json:"source,omitempty"`
	ID     string `json:"id,omitempty"`
}

// DuplicateFlow creates a flow seeded from an exported definition
type DuplicateFlow struct {
	Source string
}

// ImportFlow creates a flow seeded from an uploaded definition
type ImportFlow struct {
	Source string
}

type DeleteFlow struct {
	ID string
}

// FlowUpdate is a shallow partial of a flow; nil fields are left untouched
type FlowUpdate struct {
	Name        *string          `json:"name,omitempty"`
	IsConnected *bool            `json:"isConnected,omitempty"`
	FlowChart   *model.FlowChart `json:"flowChart,omitempty"`
}

type UpdateSelectedFlow struct {
	Update FlowUpdate
}

type SetFlowArguments struct {
	Args model.Arguments
}

// LoadFlow selects a flow in the selected workspace. The id is not checked.
type LoadFlow struct {
	ID string
}

// NodeUpdate is a shallow partial of a node. Data replaces the whole data
// object when set.
type NodeUpdate struct {
	Type     *string         `json:"type,omitempty"`
	Position *model.Position `json:"position,omitempty"`
	Data     model.NodeData  `json:"data,omitempty"`
}

type UpdateNode struct {
	NodeID string     `json:"nodeId"`
	Update NodeUpdate `json:"nodeUpdate"`
}

type UpdateNodeData struct {
	NodeID string         `json:"nodeId"`
	Data   model.NodeData `json:"nodeDataUpdate"`
}

type AddNode struct {
	ID       string         `json:"id"`
	NodeType string         `json:"type,omitempty"`
	Data     model.NodeData `json:"data"`
	Position model.Position `json:"position"`
}

type DeleteNode struct {
	NodeID string
}

type AddLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Connection identifies edges by endpoints
type Connection struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DeleteLink removes edges either by Connection (any edge leaving
// Connection.Source or entering Connection.Target) or by EdgeID.
type DeleteLink struct {
	Connection *Connection
	EdgeID     string
}

type LoadWorkspace struct {
	ID string
}

type CreateNewWorkspace struct{}

// WorkspaceUpdate is a shallow partial of a workspace; nil fields are left
// untouched
type WorkspaceUpdate struct {
	Name           *string         `json:"name,omitempty"`
	DaemonEndpoint *string         `json:"daemon_endpoint,omitempty"`
	IsConnected    *bool           `json:"isConnected,omitempty"`
	DaemonID       *string         `json:"daemon_id,omitempty"`
	Files          *[]string       `json:"files,omitempty"`
	SelectedFlowID *string         `json:"selectedFlowId,omitempty"`
	FlowArguments  model.Arguments `json:"flowArguments,omitempty"`
	JinaVersion    *string         `json:"jina_version,omitempty"`
}

type UpdateSelectedWorkspace struct {
	Update WorkspaceUpdate
}

type DeleteWorkspace struct {
	ID string
}

// SetDaemonStatus records the outcome of probing a workspace's daemon
type SetDaemonStatus struct {
	WorkspaceID string `json:"workspaceId"`
	IsConnected bool   `json:"isConnected"`
	DaemonID    string `json:"daemonId,omitempty"`
	JinaVersion string `json:"jinaVersion,omitempty"`
}

// Unknown is any action type the reducer does not handle
type Unknown struct {
	Name string
}

func (CreateFlow) Type() ActionType              { return ActionCreateFlow }
func (DuplicateFlow) Type() ActionType           { return ActionDuplicateFlow }
func (ImportFlow) Type() ActionType              { return ActionImportFlow }
func (DeleteFlow) Type() ActionType              { return ActionDeleteFlow }
func (UpdateSelectedFlow) Type() ActionType      { return ActionUpdateSelectedFlow }
func (SetFlowArguments) Type() ActionType        { return ActionSetFlowArguments }
func (LoadFlow) Type() ActionType                { return ActionLoadFlow }
func (UpdateNode) Type() ActionType              { return ActionUpdateNode }
func (UpdateNodeData) Type() ActionType          { return ActionUpdateNodeData }
func (AddNode) Type() ActionType                 { return ActionAddNode }
func (DeleteNode) Type() ActionType              { return ActionDeleteNode }
func (AddLink) Type() ActionType                 { return ActionAddLink }
func (DeleteLink) Type() ActionType              { return ActionDeleteLink }
func (LoadWorkspace) Type() ActionType           { return ActionLoadWorkspace }
func (CreateNewWorkspace) Type() ActionType      { return ActionCreateNewWorkspace }
func (UpdateSelectedWorkspace) Type() ActionType { return ActionUpdateSelectedWorkspace }
func (DeleteWorkspace) Type() ActionType         { return ActionDeleteWorkspace }
func (SetDaemonStatus) Type() ActionType         { return ActionSetDaemonStatus }
func (u Unknown) Type() ActionType               { return ActionType(u.Name) }

// DecodeAction builds an action from its wire form {type, payload}. Unknown
// types decode to Unknown; malformed payloads are an error.
func DecodeAction(actionType string, payload json.RawMessage) (Action, error) {
	var (
		action Action
		err    error
	)

	switch ActionType(actionType) {
	case ActionCreateFlow:
		var a CreateFlow
		err = decodeOptional(payload, &a)
		action = a
	case ActionDuplicateFlow:
		var source string
		err = decodeOptional(payload, &source)
		action = DuplicateFlow{Source: source}
	case ActionImportFlow:
		var source string
		err = decodeOptional(payload, &source)
		action = ImportFlow{Source: source}
	case ActionDeleteFlow:
		var id string
		err = json.Unmarshal(payload, &id)
		action = DeleteFlow{ID: id}
	case ActionUpdateSelectedFlow:
		var u FlowUpdate
		err = json.Unmarshal(payload, &u)
		action = UpdateSelectedFlow{Update: u}
	case ActionSetFlowArguments:
		var args model.Arguments
		err = json.Unmarshal(payload, &args)
		action = SetFlowArguments{Args: args}
	case ActionLoadFlow:
		var id string
		err = json.Unmarshal(payload, &id)
		action = LoadFlow{ID: id}
	case ActionUpdateNode:
		var a UpdateNode
		err = json.Unmarshal(payload, &a)
		action = a
	case ActionUpdateNodeData:
		var a UpdateNodeData
		err = json.Unmarshal(payload, &a)
		action = a
	case ActionAddNode:
		var a AddNode
		err = json.Unmarshal(payload, &a)
		action = a
	case ActionDeleteNode:
		var id string
		err = json.Unmarshal(payload, &id)
		action = DeleteNode{NodeID: id}
	case ActionAddLink:
		var a AddLink
		err = json.Unmarshal(payload, &a)
		action = a
	case ActionDeleteLink:
		action, err = decodeDeleteLink(payload)
	case ActionLoadWorkspace:
		var id string
		err = json.Unmarshal(payload, &id)
		action = LoadWorkspace{ID: id}
	case ActionCreateNewWorkspace:
		action = CreateNewWorkspace{}
	case ActionUpdateSelectedWorkspace:
		var u WorkspaceUpdate
		err = json.Unmarshal(payload, &u)
		action = UpdateSelectedWorkspace{Update: u}
	case ActionDeleteWorkspace:
		var id string
		err = json.Unmarshal(payload, &id)
		action = DeleteWorkspace{ID: id}
	case ActionSetDaemonStatus:
		var a SetDaemonStatus
		err = json.Unmarshal(payload, &a)
		action = a
	default:
		return Unknown{Name: actionType}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", actionType, err)
	}
	return action, nil
}

func decodeOptional(payload json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

func decodeDeleteLink(payload json.RawMessage) (Action, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var c Connection
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, err
		}
		return DeleteLink{Connection: &c}, nil
	}
	var id string
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return nil, err
	}
	return DeleteLink{EdgeID: id}, nil
}
