package pipeline

import (
	"sort"

	"flowdash/internal/model"
)

const (
	nodeTypeGateway = "gateway"
	nodeTypePod     = "pod"

	originX  = 600.0
	originY  = 100.0
	columnDX = 250.0
	rowDY    = 150.0
)

// ToFlowChart lays a definition out as gateway + one node per executor, with
// edges following needs. Rows are dependency depth.
func ToFlowChart(def *Definition) model.FlowChart {
	chart := model.InitialFlowChart()
	if def == nil {
		return chart
	}

	depth := map[string]int{model.GatewayNodeID: 0}
	perRow := map[int]int{}
	var edges []model.Element

	for i, ex := range def.Executors {
		if ex.Name == "" || depth[ex.Name] > 0 || ex.Name == model.GatewayNodeID {
			continue
		}

		needs := ex.Needs
		if needs == nil {
			needs = []string{model.GatewayNodeID}
			if i > 0 {
				needs = []string{def.Executors[i-1].Name}
			}
		}

		row := 1
		for _, need := range needs {
			d, ok := depth[need]
			if !ok {
				continue
			}
			if d+1 > row {
				row = d + 1
			}
			edges = append(edges, model.EdgeElement(model.Edge{
				ID:     edgeID(need, ex.Name),
				Source: need,
				Target: ex.Name,
			}))
		}
		depth[ex.Name] = row

		col := perRow[row]
		perRow[row]++

		data := model.NodeData{"name": ex.Name}
		for _, p := range ex.Properties {
			data[p.Key] = p.Value
		}
		chart.Elements = append(chart.Elements, model.NodeElement(model.Node{
			ID:       ex.Name,
			Type:     nodeTypePod,
			Position: model.Position{X: originX + float64(col)*columnDX, Y: originY + float64(row)*rowDY},
			Data:     data,
		}))
	}

	chart.Elements = append(chart.Elements, edges...)
	return chart
}

func edgeID(source, target string) string {
	return "e-" + source + "-" + target
}

// FromFlowChart rebuilds a definition from a chart. Every non-gateway node
// becomes an executor with explicit needs taken from its incoming edges.
func FromFlowChart(chart model.FlowChart) *Definition {
	names := make(map[string]string)
	for _, n := range chart.Nodes() {
		names[n.ID] = nodeName(n)
	}

	incoming := make(map[string][]string)
	for _, e := range chart.Edges() {
		source, ok := names[e.Source]
		if !ok {
			continue
		}
		incoming[e.Target] = append(incoming[e.Target], source)
	}

	def := &Definition{JType: "Flow", Version: "1"}
	for _, n := range chart.Nodes() {
		if isGateway(n) {
			continue
		}
		ex := Executor{Name: names[n.ID], Needs: append([]string{}, incoming[n.ID]...)}

		keys := make([]string, 0, len(n.Data))
		for k := range n.Data {
			if k != "name" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			ex.Properties = append(ex.Properties, Property{Key: k, Value: n.Data[k]})
		}
		def.Executors = append(def.Executors, ex)
	}
	return def
}

func isGateway(n model.Node) bool {
	return n.ID == model.GatewayNodeID || n.Type == nodeTypeGateway
}

func nodeName(n model.Node) string {
	if isGateway(n) {
		return model.GatewayNodeID
	}
	if name, ok := n.Data["name"].(string); ok && name != "" {
		return name
	}
	return n.ID
}
