package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"flowdash/internal/daemon"
	"flowdash/internal/examples"
	"flowdash/internal/model"
	"flowdash/internal/pipeline"
	"flowdash/internal/state"

	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNoEndpoint        = errors.New("workspace has no daemon endpoint")
	ErrInvalidDefinition = errors.New("invalid pipeline definition")
)

// EventBus publishes editor events
type EventBus interface {
	PublishEditor(ctx context.Context, event map[string]interface{}) error
}

// Persister stores the user-generated part of the state
type Persister interface {
	Save(ctx context.Context, s *state.State) error
	Load(ctx context.Context) state.Snapshot
}

// Prober queries a workspace daemon
type Prober interface {
	Status(ctx context.Context, endpoint string) (daemon.Status, error)
}

// EditorService is the single writer of the editor state. Every action goes
// through Dispatch, which reduces, persists and publishes under one lock.
type EditorService struct {
	mu        sync.RWMutex
	state     *state.State
	reducer   *state.Reducer
	persister Persister
	bus       EventBus
	log       *zap.Logger
	jobClient JobClient
	prober    Prober
}

type Option func(*EditorService)

// WithReducer replaces the default reducer
func WithReducer(r *state.Reducer) Option {
	return func(s *EditorService) { s.reducer = r }
}

// WithJobClient makes ConnectWorkspace probe in the background
func WithJobClient(c JobClient) Option {
	return func(s *EditorService) { s.jobClient = c }
}

// WithProber sets the prober used for inline connection checks
func WithProber(p Prober) Option {
	return func(s *EditorService) { s.prober = p }
}

// NewEditorService restores the persisted user entities and merges them with
// the built-in examples
func NewEditorService(ctx context.Context, persister Persister, bus EventBus, log *zap.Logger, opts ...Option) *EditorService {
	s := &EditorService{
		reducer:   state.NewReducer(),
		persister: persister,
		bus:       bus,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}

	user := persister.Load(ctx)
	s.state = state.Initial(user, examples.Workspaces(), examples.Flows(pipeline.ParseFlowChart))

	log.Info("Editor state restored",
		zap.Int("workspaces", s.state.Workspaces.Len()),
		zap.Int("flows", s.state.Flows.Len()),
		zap.String("selected_workspace", s.state.SelectedWorkspaceID),
	)
	return s
}

// Snapshot returns the current state. The value is shared and must not be
// modified.
func (s *EditorService) Snapshot() *state.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies an action. The new state is kept even when saving it
// fails; the save error is returned.
func (s *EditorService) Dispatch(ctx context.Context, action state.Action) (*state.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next := s.reducer.Reduce(prev, action)
	if next == prev {
		s.log.Debug("Ignoring unhandled action", zap.String("type", actionType(action)))
		return next, nil
	}
	s.state = next

	var saveErr error
	if err := s.persister.Save(ctx, next); err != nil {
		s.log.Error("Failed to persist editor state", zap.String("action", actionType(action)), zap.Error(err))
		saveErr = fmt.Errorf("failed to persist state: %w", err)
	}

	event := map[string]interface{}{
		"type":                "state.changed",
		"action":              actionType(action),
		"selectedWorkspaceId": next.SelectedWorkspaceID,
		"selectedFlowId":      next.SelectedFlowID(),
	}
	if err := s.bus.PublishEditor(ctx, event); err != nil {
		s.log.Warn("Failed to publish state change", zap.Error(err))
	}

	return next, saveErr
}

// ImportFlow creates a flow from a pipeline definition. Unlike the
// IMPORT_FLOW action, a definition that does not parse is rejected.
func (s *EditorService) ImportFlow(ctx context.Context, source string) (*state.State, error) {
	if _, err := pipeline.Parse(source); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	return s.Dispatch(ctx, state.ImportFlow{Source: source})
}

// ExportFlow renders a flow as a pipeline definition
func (s *EditorService) ExportFlow(id string) ([]byte, error) {
	flow, ok := s.Snapshot().Flows.Get(id)
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", id, ErrNotFound)
	}
	out, err := pipeline.Marshal(pipeline.FromFlowChart(flow.FlowChart))
	if err != nil {
		return nil, fmt.Errorf("failed to export flow %s: %w", id, err)
	}
	return out, nil
}

// ConnectWorkspace checks the daemon of a workspace. With a job client the
// check is queued and queued is true; otherwise it runs inline and the
// outcome is already applied when ConnectWorkspace returns.
func (s *EditorService) ConnectWorkspace(ctx context.Context, workspaceID string) (queued bool, err error) {
	ws, ok := s.Snapshot().Workspaces.Get(workspaceID)
	if !ok {
		return false, fmt.Errorf("workspace %s: %w", workspaceID, ErrNotFound)
	}
	if ws.DaemonEndpoint == "" {
		return false, fmt.Errorf("workspace %s: %w", workspaceID, ErrNoEndpoint)
	}

	if s.jobClient != nil {
		if err := s.jobClient.ScheduleDaemonProbe(workspaceID, ws.DaemonEndpoint, 0); err != nil {
			return false, fmt.Errorf("failed to schedule daemon probe: %w", err)
		}
		return true, nil
	}

	if s.prober == nil {
		return false, fmt.Errorf("no daemon prober configured")
	}
	status, err := s.prober.Status(ctx, ws.DaemonEndpoint)
	if err != nil {
		return false, fmt.Errorf("failed to probe daemon: %w", err)
	}
	return false, s.ApplyDaemonStatus(ctx, workspaceID, status)
}

// ApplyDaemonStatus records a probe outcome on a workspace
func (s *EditorService) ApplyDaemonStatus(ctx context.Context, workspaceID string, status daemon.Status) error {
	_, err := s.Dispatch(ctx, state.SetDaemonStatus{
		WorkspaceID: workspaceID,
		IsConnected: status.Connected,
		DaemonID:    status.DaemonID,
		JinaVersion: status.JinaVersion,
	})
	return err
}

// Workspace returns one workspace by id
func (s *EditorService) Workspace(id string) (model.Workspace, error) {
	ws, ok := s.Snapshot().Workspaces.Get(id)
	if !ok {
		return model.Workspace{}, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	return ws, nil
}

// Flow returns one flow by id
func (s *EditorService) Flow(id string) (model.Flow, error) {
	flow, ok := s.Snapshot().Flows.Get(id)
	if !ok {
		return model.Flow{}, fmt.Errorf("flow %s: %w", id, ErrNotFound)
	}
	return flow, nil
}

func actionType(a state.Action) string {
	if a == nil {
		return ""
	}
	return string(a.Type())
}
