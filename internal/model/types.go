package model

// EntityType tags a workspace or flow as seed data or user data
type EntityType string

const (
	TypeUserGenerated EntityType = "user-generated"
	TypeExample       EntityType = "example"
)

// Arguments is the free-form flow argument descriptor of a workspace
type Arguments map[string]interface{}

// Workspace is a named container of flows bound to one execution daemon.
// Flows point back at their workspace through Flow.WorkspaceID.
type Workspace struct {
	Name           string     `json:"name"`
	Type           EntityType `json:"type"`
	DaemonEndpoint string     `json:"daemon_endpoint"`
	IsConnected    bool       `json:"isConnected"`
	DaemonID       string     `json:"daemon_id"`
	Files          []string   `json:"files"`
	SelectedFlowID string     `json:"selectedFlowId"`
	FlowArguments  Arguments  `json:"flowArguments"`
	JinaVersion    string     `json:"jina_version"`
}

// Flow is a processing pipeline drawn as a node/edge graph
type Flow struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	WorkspaceID string     `json:"workspaceId"`
	IsConnected bool       `json:"isConnected"`
	FlowChart   FlowChart  `json:"flowChart"`
}

// IsExample reports whether the workspace is built-in seed data
func (w Workspace) IsExample() bool { return w.Type == TypeExample }

// IsExample reports whether the flow is built-in seed data
func (f Flow) IsExample() bool { return f.Type == TypeExample }

// Clone returns a deep copy of the workspace
func (w Workspace) Clone() Workspace {
	out := w
	out.Files = cloneStrings(w.Files)
	out.FlowArguments = Arguments(cloneMap(w.FlowArguments))
	return out
}

// Clone returns a deep copy of the flow
func (f Flow) Clone() Flow {
	out := f
	out.FlowChart = f.FlowChart.Clone()
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case NodeData:
		return NodeData(cloneMap(t))
	case Arguments:
		return Arguments(cloneMap(t))
	case []interface{}:
		if t == nil {
			return t
		}
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return cloneStrings(t)
	default:
		return v
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
