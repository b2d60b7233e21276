package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/doffice/constants"
)

// BuildPushMessageSchema returns the JSON-Schema for push-channel messages as a generic map.
// Unknown properties are allowed so newer backends can add fields. The message type decides
// what a message means, so status is optional.
func BuildPushMessageSchema() map[string]any {
	types := make([]string, 0, len(constants.AllMessageTypes))
	for _, t := range constants.AllMessageTypes {
		types = append(types, string(t))
	}
	statuses := make([]string, 0, len(constants.AllJobStatuses))
	for _, s := range constants.AllJobStatuses {
		statuses = append(statuses, string(s))
	}
	optionalString := map[string]any{"type": []string{"string", "null"}}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"job_id": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "integer"},
					map[string]any{"type": "string", "pattern": `^-?[0-9]+$`},
				},
			},
			"status":   map[string]any{"type": "string", "enum": statuses},
			"type":     map[string]any{"type": "string", "enum": types},
			"text":     optionalString,
			"error":    optionalString,
			"filename": optionalString,
		},
		"required": []string{"job_id", "type"},
	}
}

var (
	pushSchemaOnce sync.Once
	pushSchema     *jsonschema.Schema
	pushSchemaErr  error
)

func compiledPushSchema() (*jsonschema.Schema, error) {
	pushSchemaOnce.Do(func() {
		b, err := json.Marshal(BuildPushMessageSchema())
		if err != nil {
			pushSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("push_message.json", bytes.NewReader(b)); err != nil {
			pushSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		pushSchema, pushSchemaErr = compiler.Compile("push_message.json")
	})
	return pushSchema, pushSchemaErr
}

func validatePushMessage(raw []byte) error {
	schema, err := compiledPushSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("unmarshal data: trailing content after message")
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("message does not match schema: %w", err)
	}
	return nil
}
