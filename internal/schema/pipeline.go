package schema

import (
	_ "embed"
	"encoding/json"
)

//go:embed pipeline.schema.json
var pipelineSchema []byte

// PipelineSchema returns the JSON Schema of a pipeline definition document
func PipelineSchema() map[string]interface{} {
	var s map[string]interface{}
	if err := json.Unmarshal(pipelineSchema, &s); err != nil {
		panic("schema: embedded pipeline schema is invalid: " + err.Error())
	}
	return s
}
