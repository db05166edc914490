// Package pipeline converts YAML pipeline definitions to flow charts and back.
//
// A definition is a mapping with an optional jtype/version/with header and a
// list of executors (legacy documents call it pods and carry a !Flow tag):
//
//	jtype: Flow
//	version: '1'
//	executors:
//	  - name: encoder
//	    uses: jinahub://Encoder
//	  - name: indexer
//	    needs: encoder
//
// An executor without needs follows the previous one; the first executor
// follows the gateway.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"flowdash/internal/model"
	"flowdash/internal/schema"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDefinition is returned for blank or non-mapping documents
var ErrEmptyDefinition = errors.New("pipeline definition is empty")

const legacyFlowTag = "!Flow"

// Property is one executor setting, kept in document order
type Property struct {
	Key   string
	Value interface{}
}

// Executor is one pipeline step. Needs is nil when the document omits it.
type Executor struct {
	Name       string
	Needs      []string
	Properties []Property
}

// Get returns the value of the named property
func (e Executor) Get(key string) (interface{}, bool) {
	for _, p := range e.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Definition is a parsed pipeline document
type Definition struct {
	JType     string
	Version   string
	With      map[string]interface{}
	Executors []Executor
}

var validator = schema.NewCompilerWithCache(8)

// Parse decodes and validates a pipeline definition
func Parse(source string) (*Definition, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(source), &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, ErrEmptyDefinition
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, ErrEmptyDefinition
	}

	def := &Definition{}
	if doc.Tag == legacyFlowTag {
		def.JType = "Flow"
		doc.Tag = "!!map"
	}

	var raw map[string]interface{}
	if err := doc.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	if err := validator.Validate(context.Background(), schema.PipelineSchema(), raw); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i].Value, doc.Content[i+1]
		switch key {
		case "jtype":
			def.JType = value.Value
		case "version":
			def.Version = value.Value
		case "with":
			if err := value.Decode(&def.With); err != nil {
				return nil, fmt.Errorf("failed to decode with: %w", err)
			}
		case "executors", "pods":
			executors, err := parseExecutors(value)
			if err != nil {
				return nil, err
			}
			def.Executors = append(def.Executors, executors...)
		}
	}

	return def, nil
}

func parseExecutors(seq *yaml.Node) ([]Executor, error) {
	if seq.Kind != yaml.SequenceNode {
		return nil, nil
	}
	executors := make([]Executor, 0, len(seq.Content))
	for _, item := range seq.Content {
		var ex Executor
		for i := 0; i+1 < len(item.Content); i += 2 {
			key, value := item.Content[i].Value, item.Content[i+1]
			switch key {
			case "name":
				ex.Name = value.Value
			case "needs":
				needs, err := decodeNeeds(value)
				if err != nil {
					return nil, fmt.Errorf("executor %q: %w", ex.Name, err)
				}
				ex.Needs = needs
			default:
				var v interface{}
				if err := value.Decode(&v); err != nil {
					return nil, fmt.Errorf("executor %q: failed to decode %s: %w", ex.Name, key, err)
				}
				ex.Properties = append(ex.Properties, Property{Key: key, Value: v})
			}
		}
		executors = append(executors, ex)
	}
	return executors, nil
}

func decodeNeeds(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		needs := make([]string, 0, len(n.Content))
		if err := n.Decode(&needs); err != nil {
			return nil, fmt.Errorf("invalid needs: %w", err)
		}
		return needs, nil
	}
	return nil, fmt.Errorf("invalid needs")
}

// Marshal encodes a definition as YAML, keeping executor property order
func Marshal(def *Definition) ([]byte, error) {
	doc := mapping()
	jtype := def.JType
	if jtype == "" {
		jtype = "Flow"
	}
	appendScalar(doc, "jtype", jtype)
	if def.Version != "" {
		appendScalar(doc, "version", def.Version)
	}
	if len(def.With) > 0 {
		if err := appendValue(doc, "with", def.With); err != nil {
			return nil, err
		}
	}

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, ex := range def.Executors {
		item := mapping()
		appendScalar(item, "name", ex.Name)
		if ex.Needs != nil {
			if err := appendValue(item, "needs", ex.Needs); err != nil {
				return nil, err
			}
		}
		for _, p := range ex.Properties {
			if err := appendValue(item, p.Key, p.Value); err != nil {
				return nil, err
			}
		}
		seq.Content = append(seq.Content, item)
	}
	doc.Content = append(doc.Content, keyNode("executors"), seq)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal definition: %w", err)
	}
	return out, nil
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func appendScalar(m *yaml.Node, key, value string) {
	m.Content = append(m.Content, keyNode(key), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func appendValue(m *yaml.Node, key string, value interface{}) error {
	var v yaml.Node
	if err := v.Encode(value); err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	m.Content = append(m.Content, keyNode(key), &v)
	return nil
}

// ParseFlowChart parses a definition and lays it out as a flow chart
func ParseFlowChart(source string) (model.FlowChart, error) {
	def, err := Parse(source)
	if err != nil {
		return model.FlowChart{}, err
	}
	return ToFlowChart(def), nil
}
