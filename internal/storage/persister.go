package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"flowdash/internal/model"
	"flowdash/internal/state"
)

const (
	FlowsKey      = "userFlows"
	WorkspacesKey = "userWorkspaces"
)

// Persister saves and restores the user-generated entities of a state
type Persister struct {
	kv  KV
	log *zap.Logger
}

func NewPersister(kv KV, log *zap.Logger) *Persister {
	return &Persister{kv: kv, log: log}
}

// Save writes the user flows and workspaces as two JSON objects keyed by id.
// Example entities are never written.
func (p *Persister) Save(ctx context.Context, s *state.State) error {
	snap := s.UserSnapshot()

	flows, err := json.Marshal(snap.Flows)
	if err != nil {
		return fmt.Errorf("failed to encode flows: %w", err)
	}
	workspaces, err := json.Marshal(snap.Workspaces)
	if err != nil {
		return fmt.Errorf("failed to encode workspaces: %w", err)
	}

	if err := p.kv.Set(ctx, FlowsKey, flows); err != nil {
		return fmt.Errorf("failed to save flows: %w", err)
	}
	if err := p.kv.Set(ctx, WorkspacesKey, workspaces); err != nil {
		return fmt.Errorf("failed to save workspaces: %w", err)
	}
	return nil
}

// Load reads the stored user entities. Missing, empty or malformed data
// yields the default workspace and flow; it is logged, never returned.
func (p *Persister) Load(ctx context.Context) state.Snapshot {
	var snap state.Snapshot

	if !p.read(ctx, WorkspacesKey, &snap.Workspaces) || snap.Workspaces.Len() == 0 {
		return state.DefaultSnapshot()
	}
	if !p.read(ctx, FlowsKey, &snap.Flows) || snap.Flows.Len() == 0 {
		return state.DefaultSnapshot()
	}

	// Only user-generated entities are stored; anything else is dropped.
	// A flow may belong to an example workspace, so flows without a stored
	// workspace are kept here and resolved by state.Initial.
	var foreign []string
	snap.Workspaces.Each(func(id string, w model.Workspace) bool {
		if w.Type != model.TypeUserGenerated {
			foreign = append(foreign, id)
		}
		return true
	})
	for _, id := range foreign {
		p.log.Warn("Dropping stored workspace", zap.String("workspace_id", id))
		snap.Workspaces.Delete(id)
	}

	var dangling []string
	snap.Flows.Each(func(id string, f model.Flow) bool {
		if f.Type != model.TypeUserGenerated {
			dangling = append(dangling, id)
		}
		return true
	})
	for _, id := range dangling {
		p.log.Warn("Dropping stored flow", zap.String("flow_id", id))
		snap.Flows.Delete(id)
	}

	if snap.Workspaces.Len() == 0 || snap.Flows.Len() == 0 {
		return state.DefaultSnapshot()
	}
	return snap
}

func (p *Persister) read(ctx context.Context, key string, v interface{}) bool {
	data, ok, err := p.kv.Get(ctx, key)
	if err != nil {
		p.log.Warn("Failed to read stored state", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok || len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		p.log.Warn("Discarding malformed stored state", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
