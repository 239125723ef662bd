package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// StepResultKind tags the known step-result shapes accumulated in
// workflow_data. Payloads carrying an unknown kind are preserved as-is but
// never validated: workflow_data is schema-on-read, not a trusted blob.
type StepResultKind string

const (
	StepResultCheckIn  StepResultKind = "check_in"
	StepResultNote     StepResultKind = "note"
	StepResultOutreach StepResultKind = "outreach"
)

var ErrUnknownStepKind = errors.New("unknown step result kind")

// stepSchemas holds one JSON Schema per known step-result kind. Validation
// happens at append and read sites, not at rest.
var stepSchemas = map[StepResultKind]gojsonschema.JSONLoader{
	StepResultCheckIn: gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["kind", "sentiment"],
		"properties": {
			"kind": {"const": "check_in"},
			"sentiment": {"enum": ["positive", "neutral", "negative"]},
			"summary": {"type": "string"},
			"recorded_at": {"type": "string", "format": "date-time"}
		}
	}`),
	StepResultNote: gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["kind", "body"],
		"properties": {
			"kind": {"const": "note"},
			"body": {"type": "string", "minLength": 1},
			"author_id": {"type": "string"}
		}
	}`),
	StepResultOutreach: gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["kind", "channel"],
		"properties": {
			"kind": {"const": "outreach"},
			"channel": {"enum": ["email", "call", "meeting", "chat"]},
			"outcome": {"type": "string"},
			"follow_up_at": {"type": "string", "format": "date-time"}
		}
	}`),
}

// ValidateStepResult checks a step-result payload against the schema for its
// kind. The kind is read from the payload's "kind" key.
func ValidateStepResult(payload map[string]any) (StepResultKind, error) {
	rawKind, _ := payload["kind"].(string)

	kind := StepResultKind(rawKind)

	schema, known := stepSchemas[kind]
	if !known {
		return kind, fmt.Errorf("%w: %q", ErrUnknownStepKind, rawKind)
	}

	document := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return kind, fmt.Errorf("step result validation failed: %w", err)
	}

	if !result.Valid() {
		return kind, fmt.Errorf("invalid %s step result: %v", kind, result.Errors())
	}

	return kind, nil
}

// AppendStepResult validates the payload and appends it to the execution's
// workflow_data under the "steps" key. Existing unknown keys in
// workflow_data are left untouched.
func (e *WorkflowExecution) AppendStepResult(payload map[string]any, now time.Time) error {
	if _, err := ValidateStepResult(payload); err != nil {
		return err
	}

	if e.WorkflowData == nil {
		e.WorkflowData = make(map[string]any)
	}

	steps, _ := e.WorkflowData["steps"].([]any)

	entry := make(map[string]any, len(payload)+1)
	for key, value := range payload {
		entry[key] = value
	}

	if _, present := entry["recorded_at"]; !present {
		entry["recorded_at"] = now.UTC().Format(time.RFC3339)
	}

	e.WorkflowData["steps"] = append(steps, any(entry))

	return nil
}

// StepResults returns the validated step results accumulated in
// workflow_data, skipping entries that no longer validate. Read sites get
// only well-formed data; malformed entries are reported, not returned.
func (e *WorkflowExecution) StepResults() (valid []map[string]any, malformed int) {
	steps, _ := e.WorkflowData["steps"].([]any)

	for _, raw := range steps {
		entry := asStringMap(raw)
		if entry == nil {
			malformed++

			continue
		}

		if _, err := ValidateStepResult(entry); err != nil {
			malformed++

			continue
		}

		valid = append(valid, entry)
	}

	return valid, malformed
}

// asStringMap normalizes a step entry that may have round-tripped through
// JSON persistence.
func asStringMap(raw any) map[string]any {
	if entry, ok := raw.(map[string]any); ok {
		return entry
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}

	var entry map[string]any
	if err := json.Unmarshal(encoded, &entry); err != nil {
		return nil
	}

	return entry
}
