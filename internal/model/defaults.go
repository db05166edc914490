package model

const (
	DefaultWorkspaceID = "_userWorkspace"
	DefaultFlowID      = "_userFlow"
	DefaultJinaVersion = "master"

	DefaultWorkspaceName = "Workspace 1"
	DefaultFlowName      = "Custom Flow 1"

	GatewayNodeID = "gateway"
)

// DefaultFlowArguments returns the argument descriptor of a fresh workspace
func DefaultFlowArguments() Arguments {
	return Arguments{
		"version": "0.0",
		"flow":    []interface{}{},
		"pea":     []interface{}{},
		"pod":     []interface{}{},
	}
}

// InitialFlowChart returns the empty template: a lone gateway node
func InitialFlowChart() FlowChart {
	return FlowChart{
		Elements: []Element{
			NodeElement(Node{
				ID:       GatewayNodeID,
				Type:     "gateway",
				Position: Position{X: 600, Y: 100},
				Data:     NodeData{"name": GatewayNodeID},
			}),
		},
	}
}

// DefaultWorkspace returns the workspace synthesized when no user workspace exists
func DefaultWorkspace() Workspace {
	return Workspace{
		Name:           DefaultWorkspaceName,
		Type:           TypeUserGenerated,
		Files:          []string{},
		SelectedFlowID: DefaultFlowID,
		FlowArguments:  DefaultFlowArguments(),
		JinaVersion:    DefaultJinaVersion,
	}
}

// DefaultFlow returns the flow synthesized when a workspace has no user flow
func DefaultFlow(workspaceID string) Flow {
	return Flow{
		Name:        DefaultFlowName,
		Type:        TypeUserGenerated,
		WorkspaceID: workspaceID,
		FlowChart:   InitialFlowChart(),
	}
}
