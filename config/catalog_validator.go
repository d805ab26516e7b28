package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// CatalogValidator validates an agent catalog against the catalog schema
type CatalogValidator struct {
	schema *gojsonschema.Schema
}

// NewCatalogValidator compiles the embedded catalog schema.
func NewCatalogValidator() (*CatalogValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &CatalogValidator{schema: schema}, nil
}

// Validate checks the catalog and reports every violation.
func (cv *CatalogValidator) Validate(c *Catalog) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	result, err := cv.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, fmt.Sprintf("- %s", e))
		}
		return fmt.Errorf("catalog validation failed:\n%s", strings.Join(errs, "\n"))
	}

	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if seen[a.Name] {
			return fmt.Errorf("catalog validation failed: duplicate agent %q", a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Invested Agent Catalog",
  "type": "object",
  "required": ["agents"],
  "properties": {
    "agents": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "description", "capabilities"],
        "properties": {
          "name": {"type": "string", "pattern": "^[a-z][a-z0-9_-]*$"},
          "display_name": {"type": "string"},
          "description": {"type": "string", "minLength": 1},
          "endpoint": {"type": "string"},
          "status": {"type": "string", "enum": ["active", "disabled"]},
          "capabilities": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string"}
          }
        }
      }
    }
  }
}`
