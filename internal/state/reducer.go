package state

import (
	"flowdash/internal/model"
	"flowdash/internal/naming"
	"flowdash/internal/pipeline"
)

// Reducer applies actions to states. It owns the two impure collaborators a
// transition may need: id generation and pipeline parsing.
type Reducer struct {
	newID func() string
	parse func(source string) (model.FlowChart, error)
}

// Option configures a Reducer
type Option func(*Reducer)

// WithIDs replaces the id generator
func WithIDs(newID func() string) Option {
	return func(r *Reducer) { r.newID = newID }
}

// WithParser replaces the pipeline definition parser
func WithParser(parse func(source string) (model.FlowChart, error)) Option {
	return func(r *Reducer) { r.parse = parse }
}

// NewReducer creates a reducer using ULIDs and the YAML pipeline parser
func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{
		newID: naming.NewID,
		parse: pipeline.ParseFlowChart,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reduce returns the state that results from applying a to s. s is never
// modified. Unknown actions return s itself; actions that reference missing
// ids return an equal copy.
func (r *Reducer) Reduce(s *State, a Action) *State {
	if s == nil {
		s = &State{}
	}
	if a == nil {
		return s
	}
	if _, ok := a.(Unknown); ok {
		return s
	}

	next := s.Clone()
	switch act := a.(type) {
	case CreateFlow:
		r.createFlow(next, act.Source, act.ID)
	case DuplicateFlow:
		r.createFlow(next, act.Source, "")
	case ImportFlow:
		r.createFlow(next, act.Source, "")
	case DeleteFlow:
		r.deleteFlow(next, act.ID)
	case UpdateSelectedFlow:
		next.Flows.Update(next.SelectedFlowID(), func(f *model.Flow) {
			act.Update.apply(f)
		})
	case SetFlowArguments:
		next.Workspaces.Update(next.SelectedWorkspaceID, func(w *model.Workspace) {
			w.FlowArguments = model.Arguments(model.NodeData(act.Args).Clone())
		})
	case LoadFlow:
		next.Workspaces.Update(next.SelectedWorkspaceID, func(w *model.Workspace) {
			w.SelectedFlowID = act.ID
		})
	case UpdateNode:
		r.updateSelectedChart(next, func(c *model.FlowChart) {
			if i := c.NodeIndex(act.NodeID); i >= 0 {
				act.Update.apply(c.Elements[i].Node)
			}
		})
	case UpdateNodeData:
		r.updateSelectedChart(next, func(c *model.FlowChart) {
			i := c.NodeIndex(act.NodeID)
			if i < 0 {
				return
			}
			node := c.Elements[i].Node
			if node.Data == nil {
				node.Data = model.NodeData{}
			}
			for k, v := range act.Data.Clone() {
				node.Data[k] = v
			}
		})
	case AddNode:
		r.updateSelectedChart(next, func(c *model.FlowChart) {
			r.addNode(c, act)
		})
	case DeleteNode:
		r.updateSelectedChart(next, func(c *model.FlowChart) {
			c.Elements = filter(c.Elements, func(el model.Element) bool {
				if el.IsNode() {
					return el.Node.ID != act.NodeID
				}
				return !el.Touches(act.NodeID)
			})
		})
	case AddLink:
		r.updateSelectedChart(next, func(c *model.FlowChart) {
			if !c.HasNode(act.Source) || !c.HasNode(act.Target) {
				return
			}
			c.Elements = append(c.Elements, model.EdgeElement(model.Edge{
				ID:     r.newID(),
				Source: act.Source,
				Target: act.Target,
			}))
		})
	case DeleteLink:
		r.updateSelectedChart(next, func(c *model.FlowChart) {
			c.Elements = filter(c.Elements, func(el model.Element) bool {
				if !el.IsEdge() {
					return true
				}
				if act.Connection != nil {
					return el.Edge.Source != act.Connection.Source && el.Edge.Target != act.Connection.Target
				}
				return el.Edge.ID != act.EdgeID
			})
		})
	case LoadWorkspace:
		next.SelectedWorkspaceID = act.ID
	case CreateNewWorkspace:
		r.createWorkspace(next)
	case UpdateSelectedWorkspace:
		next.Workspaces.Update(next.SelectedWorkspaceID, func(w *model.Workspace) {
			act.Update.apply(w)
		})
	case DeleteWorkspace:
		r.deleteWorkspace(next, act.ID)
	case SetDaemonStatus:
		next.Workspaces.Update(act.WorkspaceID, func(w *model.Workspace) {
			w.IsConnected = act.IsConnected
			w.DaemonID = act.DaemonID
			if act.JinaVersion != "" {
				w.JinaVersion = act.JinaVersion
			}
		})
	}
	return next
}

func (u FlowUpdate) apply(f *model.Flow) {
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.IsConnected != nil {
		f.IsConnected = *u.IsConnected
	}
	if u.FlowChart != nil {
		f.FlowChart = u.FlowChart.Clone()
	}
}

func (u NodeUpdate) apply(n *model.Node) {
	if u.Type != nil {
		n.Type = *u.Type
	}
	if u.Position != nil {
		n.Position = *u.Position
	}
	if u.Data != nil {
		n.Data = u.Data.Clone()
	}
}

func (u WorkspaceUpdate) apply(w *model.Workspace) {
	if u.Name != nil {
		w.Name = *u.Name
	}
	if u.DaemonEndpoint != nil {
		w.DaemonEndpoint = *u.DaemonEndpoint
	}
	if u.IsConnected != nil {
		w.IsConnected = *u.IsConnected
	}
	if u.DaemonID != nil {
		w.DaemonID = *u.DaemonID
	}
	if u.Files != nil {
		w.Files = append([]string{}, (*u.Files)...)
	}
	if u.SelectedFlowID != nil {
		w.SelectedFlowID = *u.SelectedFlowID
	}
	if u.FlowArguments != nil {
		w.FlowArguments = model.Arguments(model.NodeData(u.FlowArguments).Clone())
	}
	if u.JinaVersion != nil {
		w.JinaVersion = *u.JinaVersion
	}
}

func (r *Reducer) updateSelectedChart(s *State, fn func(c *model.FlowChart)) {
	s.Flows.Update(s.SelectedFlowID(), func(f *model.Flow) {
		fn(&f.FlowChart)
	})
}

func (r *Reducer) addNode(c *model.FlowChart, act AddNode) {
	id := act.ID
	if id == "" {
		id = r.newID()
	}
	if c.IndexOf(id) >= 0 {
		return
	}
	nodeType := act.NodeType
	if nodeType == "" {
		nodeType = "pod"
	}
	data := act.Data.Clone()
	if data == nil {
		data = model.NodeData{}
	}
	c.Elements = append(c.Elements, model.NodeElement(model.Node{
		ID:       id,
		Type:     nodeType,
		Position: act.Position,
		Data:     data,
	}))
}

// createFlow adds a flow to the selected workspace and selects it. Sources
// that fail to parse fall back to the empty template.
func (r *Reducer) createFlow(s *State, source, id string) {
	if !s.Workspaces.Has(s.SelectedWorkspaceID) {
		return
	}
	if id == "" || s.Flows.Has(id) {
		id = r.newID()
	}

	chart := model.InitialFlowChart()
	if source != "" {
		if parsed, err := r.parse(source); err == nil {
			chart = parsed
		}
	}

	names := make([]string, 0, s.Flows.Len())
	s.Flows.Each(func(_ string, f model.Flow) bool {
		names = append(names, f.Name)
		return true
	})

	s.Flows.Set(id, model.Flow{
		Name:        naming.Next(naming.FlowPrefix, names),
		Type:        model.TypeUserGenerated,
		WorkspaceID: s.SelectedWorkspaceID,
		FlowChart:   chart,
	})
	s.Workspaces.Update(s.SelectedWorkspaceID, func(w *model.Workspace) {
		w.SelectedFlowID = id
	})
}

// deleteFlow removes a user flow and repairs the owning workspace's
// selection. A user workspace left without user flows gets a default flow.
func (r *Reducer) deleteFlow(s *State, id string) {
	flow, ok := s.Flows.Get(id)
	if !ok || flow.IsExample() {
		return
	}
	s.Flows.Delete(id)

	ws, ok := s.Workspaces.Get(flow.WorkspaceID)
	if !ok {
		return
	}

	var candidates []string
	s.Flows.Each(func(fid string, f model.Flow) bool {
		if f.WorkspaceID == flow.WorkspaceID && (ws.IsExample() || !f.IsExample()) {
			candidates = append(candidates, fid)
		}
		return true
	})

	switch {
	case len(candidates) > 0:
		if ws.SelectedFlowID == id {
			s.Workspaces.Update(flow.WorkspaceID, func(w *model.Workspace) {
				w.SelectedFlowID = candidates[0]
			})
		}
	case !ws.IsExample():
		fid := r.freeID(s.Flows.Has, model.DefaultFlowID)
		s.Flows.Set(fid, model.DefaultFlow(flow.WorkspaceID))
		s.Workspaces.Update(flow.WorkspaceID, func(w *model.Workspace) {
			w.SelectedFlowID = fid
		})
	default:
		s.Workspaces.Update(flow.WorkspaceID, func(w *model.Workspace) {
			w.SelectedFlowID = ""
		})
	}
}

// createWorkspace adds a workspace holding one fresh flow and selects both
func (r *Reducer) createWorkspace(s *State) {
	names := make([]string, 0, s.Workspaces.Len())
	s.Workspaces.Each(func(_ string, w model.Workspace) bool {
		names = append(names, w.Name)
		return true
	})

	workspaceID := r.newID()
	flowID := r.newID()
	s.Workspaces.Set(workspaceID, model.Workspace{
		Name:           naming.Next(naming.WorkspacePrefix, names),
		Type:           model.TypeUserGenerated,
		Files:          []string{},
		SelectedFlowID: flowID,
		FlowArguments:  model.DefaultFlowArguments(),
		JinaVersion:    model.DefaultJinaVersion,
	})
	s.SelectedWorkspaceID = workspaceID
	r.createFlow(s, "", flowID)
}

// deleteWorkspace removes a user workspace together with its flows. When no
// user workspace is left a default one is synthesized. The selection then
// moves to the default workspace, or to the first user workspace when the
// default no longer exists.
func (r *Reducer) deleteWorkspace(s *State, id string) {
	ws, ok := s.Workspaces.Get(id)
	if !ok || ws.IsExample() {
		return
	}
	s.Workspaces.Delete(id)
	for _, fid := range s.WorkspaceFlows(id) {
		s.Flows.Delete(fid)
	}

	firstUser := firstWorkspace(s, func(w model.Workspace) bool { return !w.IsExample() })
	if firstUser == "" {
		wid := r.freeID(s.Workspaces.Has, model.DefaultWorkspaceID)
		fid := r.freeID(s.Flows.Has, model.DefaultFlowID)
		w := model.DefaultWorkspace()
		w.SelectedFlowID = fid
		s.Workspaces.Set(wid, w)
		s.Flows.Set(fid, model.DefaultFlow(wid))
		firstUser = wid
	}

	if s.Workspaces.Has(model.DefaultWorkspaceID) {
		s.SelectedWorkspaceID = model.DefaultWorkspaceID
	} else if !s.Workspaces.Has(s.SelectedWorkspaceID) {
		s.SelectedWorkspaceID = firstUser
	}
}

func (r *Reducer) freeID(taken func(string) bool, preferred string) string {
	if !taken(preferred) {
		return preferred
	}
	return r.newID()
}

func filter(elements []model.Element, keep func(model.Element) bool) []model.Element {
	out := make([]model.Element, 0, len(elements))
	for _, el := range elements {
		if keep(el) {
			out = append(out, el)
		}
	}
	return out
}
