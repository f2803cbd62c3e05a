package api

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const payloadSchemaURL = "lock-event.schema.json"

// eventType is not enumerated here; unknown types are rejected later with 422.
const payloadSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["deviceId", "eventType", "event"],
  "properties": {
    "deviceId":  {"type": "string", "minLength": 1},
    "eventType": {"type": "string", "minLength": 1},
    "event":     {"type": "string"},
    "timestamp": {"type": "integer", "minimum": 0},
    "user": {
      "type": "object",
      "properties": {
        "id":        {"type": "string"},
        "firstName": {"type": "string"},
        "lastName":  {"type": "string"}
      }
    }
  }
}`

var payloadSchema = mustCompileSchema(payloadSchemaURL, payloadSchemaJSON)

func mustCompileSchema(url, raw string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", url, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("invalid schema %s: %v", url, err))
	}
	return c.MustCompile(url)
}

// validatePayload checks a raw push event body against the event schema.
func validatePayload(schema *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return err
	}
	return nil
}
