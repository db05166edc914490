// Package state holds the editor state tree and the pure transition
// function that applies editor actions to it.
package state

import (
	"flowdash/internal/model"
)

// State is one immutable snapshot of the editor. Transitions never modify a
// State in place; Reduce returns a new value.
type State struct {
	SelectedWorkspaceID string                     `json:"selectedWorkspaceId"`
	Workspaces          model.Map[model.Workspace] `json:"workspaces"`
	Flows               model.Map[model.Flow]      `json:"flows"`
}

// Snapshot is the user-generated part of the state as kept in durable storage
type Snapshot struct {
	Workspaces model.Map[model.Workspace]
	Flows      model.Map[model.Flow]
}

// DefaultSnapshot returns one default workspace holding one default flow
func DefaultSnapshot() Snapshot {
	var snap Snapshot
	snap.Workspaces.Set(model.DefaultWorkspaceID, model.DefaultWorkspace())
	snap.Flows.Set(model.DefaultFlowID, model.DefaultFlow(model.DefaultWorkspaceID))
	return snap
}

// Initial merges example entities with user entities; user entities win on
// id collision. Flows pointing at a workspace that exists in neither set are
// dropped.
func Initial(user Snapshot, exampleWorkspaces model.Map[model.Workspace], exampleFlows model.Map[model.Flow]) *State {
	s := &State{
		Workspaces: exampleWorkspaces.Clone(),
		Flows:      exampleFlows.Clone(),
	}
	user.Workspaces.Each(func(id string, w model.Workspace) bool {
		s.Workspaces.Set(id, w.Clone())
		return true
	})
	user.Flows.Each(func(id string, f model.Flow) bool {
		s.Flows.Set(id, f.Clone())
		return true
	})

	// Flows whose workspace exists neither among the user entities nor the
	// examples cannot be reached
	var orphans []string
	s.Flows.Each(func(id string, f model.Flow) bool {
		if !s.Workspaces.Has(f.WorkspaceID) {
			orphans = append(orphans, id)
		}
		return true
	})
	for _, id := range orphans {
		s.Flows.Delete(id)
	}

	s.SelectedWorkspaceID = model.DefaultWorkspaceID
	if !s.Workspaces.Has(model.DefaultWorkspaceID) {
		s.SelectedWorkspaceID = firstWorkspace(s, func(w model.Workspace) bool { return !w.IsExample() })
		if s.SelectedWorkspaceID == "" {
			s.SelectedWorkspaceID = firstWorkspace(s, func(model.Workspace) bool { return true })
		}
	}
	return s
}

// Clone returns a deep copy of the state
func (s *State) Clone() *State {
	return &State{
		SelectedWorkspaceID: s.SelectedWorkspaceID,
		Workspaces:          s.Workspaces.Clone(),
		Flows:               s.Flows.Clone(),
	}
}

// UserSnapshot returns the user-generated entities only
func (s *State) UserSnapshot() Snapshot {
	var snap Snapshot
	s.Workspaces.Each(func(id string, w model.Workspace) bool {
		if w.Type == model.TypeUserGenerated {
			snap.Workspaces.Set(id, w.Clone())
		}
		return true
	})
	s.Flows.Each(func(id string, f model.Flow) bool {
		if f.Type == model.TypeUserGenerated {
			snap.Flows.Set(id, f.Clone())
		}
		return true
	})
	return snap
}

// SelectedWorkspace returns the globally selected workspace
func (s *State) SelectedWorkspace() (model.Workspace, bool) {
	return s.Workspaces.Get(s.SelectedWorkspaceID)
}

// SelectedFlowID returns the selected flow id of the selected workspace
func (s *State) SelectedFlowID() string {
	w, ok := s.SelectedWorkspace()
	if !ok {
		return ""
	}
	return w.SelectedFlowID
}

// SelectedFlow returns the selected flow of the selected workspace
func (s *State) SelectedFlow() (model.Flow, bool) {
	id := s.SelectedFlowID()
	if id == "" {
		return model.Flow{}, false
	}
	return s.Flows.Get(id)
}

// FlowArguments returns the flow arguments of the selected workspace
func (s *State) FlowArguments() model.Arguments {
	w, _ := s.SelectedWorkspace()
	return w.FlowArguments
}

// IsConnected reports whether the selected workspace reached its daemon
func (s *State) IsConnected() bool {
	w, _ := s.SelectedWorkspace()
	return w.IsConnected
}

// WorkspaceFlows returns the ids of the flows owned by a workspace, in order
func (s *State) WorkspaceFlows(workspaceID string) []string {
	var ids []string
	s.Flows.Each(func(id string, f model.Flow) bool {
		if f.WorkspaceID == workspaceID {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

func firstWorkspace(s *State, match func(model.Workspace) bool) string {
	found := ""
	s.Workspaces.Each(func(id string, w model.Workspace) bool {
		if match(w) {
			found = id
			return false
		}
		return true
	})
	return found
}
