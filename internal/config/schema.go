package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed config.schema.json
var rawSchema []byte

var (
	schemaLoader     gojsonschema.JSONLoader
	schemaLoaderErr  error
	schemaLoaderOnce sync.Once
)

// Schema returns the JSON schema config files are validated against,
// decoded into generic maps.
func Schema() (map[string]any, error) {
	var schemaMap map[string]any
	if err := json.Unmarshal(rawSchema, &schemaMap); err != nil {
		return nil, fmt.Errorf("config: decode schema: %w", err)
	}
	return schemaMap, nil
}

// SchemaError lists every way a config file violates the schema.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 0 {
		return "config failed schema validation"
	}
	return "config failed schema validation: " + strings.Join(e.Issues, "; ")
}

func validateAgainstSchema(raw []byte) error {
	loader, err := loadSchema()
	if err != nil {
		return fmt.Errorf("config: load schema: %w", err)
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("config: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return &SchemaError{Issues: issues}
}

func loadSchema() (gojsonschema.JSONLoader, error) {
	schemaLoaderOnce.Do(func() {
		schemaMap, err := Schema()
		if err != nil {
			schemaLoaderErr = err
			return
		}
		schemaLoader = gojsonschema.NewGoLoader(schemaMap)
	})
	if schemaLoaderErr != nil {
		return nil, schemaLoaderErr
	}
	return schemaLoader, nil
}
