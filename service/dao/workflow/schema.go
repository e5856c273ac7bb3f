package workflow

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaDocument string

const schemaURL = "geoflow://schema/workflow.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func workflowSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString(schemaURL, schemaDocument)
	})
	return compiledSchema, schemaErr
}

// validateDocument checks a decoded YAML document against the workflow schema
func validateDocument(document interface{}) error {
	schema, err := workflowSchema()
	if err != nil {
		return fmt.Errorf("invalid workflow schema: %w", err)
	}
	data, err := json.Marshal(document)
	if err != nil {
		return err
	}
	var normalized interface{}
	if err = json.Unmarshal(data, &normalized); err != nil {
		return err
	}
	return schema.Validate(normalized)
}
