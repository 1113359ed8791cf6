package artifact

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// metadataSchema is the contract for metadata.json
const metadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "category", "timestamp", "model_type", "metrics", "feature_names", "blend_weights", "target_transform", "checksums"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "category": {"type": "string", "enum": ["mobile", "laptop", "furniture"]},
    "timestamp": {"type": "string", "format": "date-time"},
    "model_type": {"type": "string", "minLength": 1},
    "metrics": {
      "type": "object",
      "required": ["r2", "mae", "median_ae", "rmse", "mape", "within_10pct", "within_20pct", "within_25pct"],
      "properties": {
        "r2": {"type": "number"},
        "mae": {"type": "number", "minimum": 0},
        "median_ae": {"type": "number", "minimum": 0},
        "rmse": {"type": "number", "minimum": 0},
        "mape": {"type": "number", "minimum": 0},
        "within_10pct": {"type": "number", "minimum": 0, "maximum": 100},
        "within_20pct": {"type": "number", "minimum": 0, "maximum": 100},
        "within_25pct": {"type": "number", "minimum": 0, "maximum": 100}
      }
    },
    "feature_names": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"type": "string", "minLength": 1}
    },
    "row_count": {"type": "integer", "minimum": 0},
    "train_rows": {"type": "integer", "minimum": 0},
    "test_rows": {"type": "integer", "minimum": 0},
    "stratified": {"type": "boolean"},
    "blend_weights": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "weight"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "weight": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "target_transform": {"type": "string", "enum": ["none", "log1p"]},
    "checksums": {
      "type": "object",
      "required": ["ensemble.gob.gz", "scaler.gob.gz"],
      "additionalProperties": {"type": "string", "pattern": "^[0-9a-f]{64}$"}
    }
  }
}`

var (
	compiledOnce   sync.Once
	compiledSchema *gojsonschema.Schema
	compileErr     error
)

func schema() (*gojsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(metadataSchema))
	})
	return compiledSchema, compileErr
}

// ValidateMetadata checks a metadata.json document against the schema
func ValidateMetadata(doc []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile metadata schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("read metadata document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid metadata: %s", strings.Join(msgs, "; "))
}
