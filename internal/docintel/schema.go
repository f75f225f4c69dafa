package docintel

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed result_schema.json
var resultSchemaJSON []byte

var (
	resultSchemaOnce sync.Once
	resultSchema     *jsonschema.Schema
	resultSchemaErr  error
)

// ResultSchemaJSON returns the JSON Schema pinning the normalized result
// contract.
func ResultSchemaJSON() []byte {
	return resultSchemaJSON
}

// ValidateResultJSON checks serialized result data against the normalized
// result contract schema.
func ValidateResultJSON(data []byte) error {
	resultSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("result_schema.json", bytes.NewReader(resultSchemaJSON)); err != nil {
			resultSchemaErr = fmt.Errorf("failed to load result schema: %w", err)
			return
		}
		resultSchema, resultSchemaErr = compiler.Compile("result_schema.json")
	})
	if resultSchemaErr != nil {
		return resultSchemaErr
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode result JSON for validation: %w", err)
	}

	if err := resultSchema.Validate(doc); err != nil {
		return fmt.Errorf("result does not match contract schema: %w", err)
	}
	return nil
}
