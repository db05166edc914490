package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElement_UnmarshalClassifiesEdges(t *testing.T) {
	raw := `[
		{"id": "a", "type": "pod", "position": {"x": 1, "y": 2}, "data": {"name": "a"}},
		{"id": "e1", "source": "a", "target": "b"}
	]`

	var elements []Element
	require.NoError(t, json.Unmarshal([]byte(raw), &elements))
	require.Len(t, elements, 2)

	assert.True(t, elements[0].IsNode())
	assert.Equal(t, "a", elements[0].ID())
	assert.Equal(t, Position{X: 1, Y: 2}, elements[0].Node.Position)
	assert.Equal(t, "a", elements[0].Node.Data["name"])

	assert.True(t, elements[1].IsEdge())
	assert.Equal(t, "e1", elements[1].ID())
	assert.True(t, elements[1].Touches("b"))
	assert.False(t, elements[1].Touches("c"))
}

func TestElement_MarshalIsFlat(t *testing.T) {
	b, err := json.Marshal(EdgeElement(Edge{ID: "e1", Source: "a", Target: "b"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"e1","source":"a","target":"b"}`, string(b))
}

func TestMap_KeepsInsertionOrder(t *testing.T) {
	var m Map[Flow]
	m.Set("c", Flow{Name: "c"})
	m.Set("a", Flow{Name: "a"})
	m.Set("b", Flow{Name: "b"})
	m.Set("a", Flow{Name: "a2"})

	assert.Equal(t, []string{"c", "a", "b"}, m.Keys())
	got, _ := m.Get("a")
	assert.Equal(t, "a2", got.Name)

	assert.True(t, m.Delete("c"))
	assert.False(t, m.Delete("c"))
	assert.Equal(t, []string{"a", "b"}, m.Keys())
}

func TestMap_JSONPreservesOrder(t *testing.T) {
	raw := `{"z": {"name": "Z"}, "a": {"name": "A"}, "m": {"name": "M"}}`

	var m Map[Workspace]
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	out, err := json.Marshal(m)
	require.NoError(t, err)

	var again Map[Workspace]
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, m.Keys(), again.Keys())
}

func TestMap_UnmarshalRejectsNonObject(t *testing.T) {
	var m Map[Flow]
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
	assert.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, 0, m.Len())
}

func TestFlow_CloneIsIndependent(t *testing.T) {
	f := DefaultFlow(DefaultWorkspaceID)
	f.FlowChart.Elements[0].Node.Data["params"] = map[string]interface{}{"k": []interface{}{"v"}}

	c := f.Clone()
	c.FlowChart.Elements[0].Node.Data["name"] = "changed"
	c.FlowChart.Elements[0].Node.Data["params"].(map[string]interface{})["k"] = "other"
	c.FlowChart.Elements = append(c.FlowChart.Elements, EdgeElement(Edge{ID: "x"}))

	assert.Equal(t, GatewayNodeID, f.FlowChart.Elements[0].Node.Data["name"])
	assert.Equal(t, []interface{}{"v"}, f.FlowChart.Elements[0].Node.Data["params"].(map[string]interface{})["k"])
	assert.Len(t, f.FlowChart.Elements, 1)
}

func TestWorkspace_CloneIsIndependent(t *testing.T) {
	w := DefaultWorkspace()
	w.Files = []string{"a.yml"}

	c := w.Clone()
	c.Files[0] = "b.yml"
	c.FlowArguments["version"] = "9"

	assert.Equal(t, "a.yml", w.Files[0])
	assert.Equal(t, "0.0", w.FlowArguments["version"])
}

func TestFlowChart_Validate(t *testing.T) {
	chart := InitialFlowChart()
	chart.Elements = append(chart.Elements,
		NodeElement(Node{ID: "encoder"}),
		EdgeElement(Edge{ID: "e1", Source: GatewayNodeID, Target: "encoder"}),
	)
	assert.NoError(t, chart.Validate())

	dangling := chart.Clone()
	dangling.Elements = append(dangling.Elements, EdgeElement(Edge{ID: "e2", Source: "encoder", Target: "ghost"}))
	assert.ErrorContains(t, dangling.Validate(), "ghost")

	dup := chart.Clone()
	dup.Elements = append(dup.Elements, NodeElement(Node{ID: "encoder"}))
	assert.ErrorContains(t, dup.Validate(), "duplicate")
}

func TestFlowChart_Lookups(t *testing.T) {
	chart := InitialFlowChart()
	chart.Elements = append(chart.Elements,
		EdgeElement(Edge{ID: "e1", Source: GatewayNodeID, Target: "n"}),
		NodeElement(Node{ID: "n"}),
	)

	assert.Equal(t, 2, chart.NodeIndex("n"))
	assert.Equal(t, -1, chart.NodeIndex("e1"))
	assert.Equal(t, 1, chart.IndexOf("e1"))
	assert.True(t, chart.HasNode(GatewayNodeID))
	assert.Len(t, chart.Nodes(), 2)
	assert.Len(t, chart.Edges(), 1)
}
