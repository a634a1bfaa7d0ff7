package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaJSON is the JSON Schema for JSON-format configuration files.
// TOML and YAML configs skip this check; their decoders already reject
// structurally invalid documents more precisely.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "scanwedged configuration",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "detector": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "wait_tolerance_ms": {"type": "integer"},
        "variation_tolerance_ms": {"type": "integer"}
      }
    },
    "source": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "type": {"enum": ["evdev", "replay", "simulated"]},
        "device": {"type": "string"},
        "trace_path": {"type": "string"},
        "realtime": {"type": "boolean"}
      }
    },
    "storage": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "path": {"type": "string"},
        "busy_timeout_ms": {"type": "integer", "minimum": 0}
      }
    },
    "ipc": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "socket_path": {"type": "string"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "listen_addr": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "error"]},
        "format": {"enum": ["text", "json"]},
        "output": {"enum": ["stdout", "stderr", "file", "both"]},
        "file_path": {"type": "string"},
        "max_size_mb": {"type": "integer", "minimum": 0},
        "max_backups": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("config: add schema resource: %v", err))
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		panic(fmt.Sprintf("config: compile schema: %v", err))
	}
	return schema
}

// ValidateJSON checks a JSON configuration document against the schema.
func ValidateJSON(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return compiledSchema.Validate(instance)
}
