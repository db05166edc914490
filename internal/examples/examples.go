// Package examples holds the built-in example workspace and flows. Example
// entities are seed data: they are rebuilt on every start and never persisted.
package examples

import (
	"embed"

	"flowdash/internal/model"
)

const WorkspaceID = "_exampleWorkspace"

//go:embed flows/*.yml
var files embed.FS

type exampleFlow struct {
	id   string
	name string
	file string
}

var exampleFlows = []exampleFlow{
	{id: "_exampleImageSearch", name: "Image Search", file: "flows/image_search.yml"},
	{id: "_exampleMultimodalSearch", name: "Multimodal Search", file: "flows/multimodal_search.yml"},
}

// ParseFunc turns a pipeline definition into a flow chart
type ParseFunc func(source string) (model.FlowChart, error)

// Workspaces returns the example workspaces
func Workspaces() model.Map[model.Workspace] {
	var m model.Map[model.Workspace]
	m.Set(WorkspaceID, model.Workspace{
		Name:           "Examples",
		Type:           model.TypeExample,
		Files:          []string{},
		SelectedFlowID: exampleFlows[0].id,
		FlowArguments:  model.DefaultFlowArguments(),
		JinaVersion:    model.DefaultJinaVersion,
	})
	return m
}

// Flows returns the example flows. Examples that fail to parse are skipped.
func Flows(parse ParseFunc) model.Map[model.Flow] {
	var m model.Map[model.Flow]
	for _, ex := range exampleFlows {
		source, err := files.ReadFile(ex.file)
		if err != nil {
			continue
		}
		chart, err := parse(string(source))
		if err != nil {
			continue
		}
		m.Set(ex.id, model.Flow{
			Name:        ex.name,
			Type:        model.TypeExample,
			WorkspaceID: WorkspaceID,
			FlowChart:   chart,
		})
	}
	return m
}
