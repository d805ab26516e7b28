package toolkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sanidhya49/Invested/llm"
)

// ErrNoJSON means the model answer held no decodable JSON object.
var ErrNoJSON = errors.New("model answer is not JSON")

// Schema validates a decoded model answer.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

func mustSchema(name, src string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("toolkit: %s schema: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Validate checks doc and reports every violation.
func (s *Schema) Validate(doc any) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, fmt.Sprintf("- %s", e))
		}
		return fmt.Errorf("%s validation failed:\n%s", s.name, strings.Join(errs, "\n"))
	}
	return nil
}

// DecodeJSON reads a model answer into v. Code fences are stripped first;
// when that is still not JSON the first balanced object in the text is tried.
func DecodeJSON(answer string, v any) error {
	return Decode(answer, nil, v)
}

// Decode is DecodeJSON with schema validation. A document that fails the
// schema counts as undecodable.
func Decode(answer string, schema *Schema, v any) error {
	_, err := DecodeObject(answer, schema, v)
	return err
}

// DecodeObject is Decode that also returns the validated document as the
// model sent it, extra keys included. The document is nil when the answer
// is JSON but not an object.
func DecodeObject(answer string, schema *Schema, v any) (map[string]any, error) {
	var lastErr error = ErrNoJSON
	for _, candidate := range candidates(answer) {
		var doc any
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrNoJSON, err)
			continue
		}
		if schema != nil {
			if err := schema.Validate(doc); err != nil {
				lastErr = err
				continue
			}
		}
		if err := json.Unmarshal([]byte(candidate), v); err != nil {
			return nil, err
		}
		obj, _ := doc.(map[string]any)
		return obj, nil
	}
	return nil, lastErr
}

func candidates(answer string) []string {
	out := []string{llm.StripCodeFences(answer)}
	if obj := llm.ExtractJSONObject(answer); obj != "" && obj != out[0] {
		out = append(out, obj)
	}
	return out
}

// Output schemas for the agents. They pin the container shape and the type of
// every field the agents read, and leave fields optional, since models vary in
// which ones they fill. Figures may arrive as numbers or numeric strings.
var (
	AlertsSchema = mustSchema("alerts", `{
  "type": "object",
  "properties": {
    "alerts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string"},
          "description": {"type": "string"},
          "severity": {"type": "string"}
        }
      }
    }
  }
}`)

	OpportunitiesSchema = mustSchema("opportunities", `{
  "definitions": {"figure": {"type": ["number", "string", "null"]}},
  "type": "object",
  "properties": {
    "opportunities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"},
          "category": {"type": "string"},
          "roi_comparison": {
            "type": ["object", "null"],
            "properties": {
              "current": {"$ref": "#/definitions/figure"},
              "suggested": {"$ref": "#/definitions/figure"}
            }
          },
          "action_items": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`)

	StrategySchema = mustSchema("strategy", `{
  "definitions": {"figure": {"type": ["number", "string", "null"]}},
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "recommendations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "symbol": {"type": "string"},
          "advice": {"type": "string"},
          "reasoning": {"type": "string"},
          "current_price": {"$ref": "#/definitions/figure"},
          "price_analysis": {
            "type": ["object", "null"],
            "properties": {
              "target": {"$ref": "#/definitions/figure"},
              "stop_loss": {"$ref": "#/definitions/figure"},
              "potential_return": {"$ref": "#/definitions/figure"}
            }
          },
          "risk_assessment": {
            "type": ["object", "null"],
            "properties": {
              "level": {"type": "string"},
              "level_percentage": {"$ref": "#/definitions/figure"},
              "description": {"type": "string"}
            }
          },
          "action_items": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`)
)
