package app

import (
	"bytes"
	"encoding/json"

	"todoapp/api/internal/store"
)

const titleRequired = "Title is required"

func titleTooSmall() Issue {
	minimum := 1
	return Issue{Code: "too_small", Minimum: &minimum, Path: []any{"title"}, Message: titleRequired}
}

func malformedJSON() *ValidationError {
	return invalid(Issue{Code: "invalid_json", Path: []any{}, Message: "Malformed JSON in request body"})
}

// decodeObject parses body as a JSON object, keeping field values raw so
// that their types can be checked individually.
func decodeObject(body []byte) (map[string]json.RawMessage, *ValidationError) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, malformedJSON()
	}
	if !json.Valid(body) {
		return nil, malformedJSON()
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, invalid(Issue{Code: "invalid_type", Expected: "object", Received: jsonType(body), Path: []any{}, Message: "Expected object"})
	}
	return fields, nil
}

// jsonType names the JSON type of raw the way validation issues report it.
func jsonType(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "undefined"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	case '{':
		return "object"
	case '[':
		return "array"
	default:
		return "number"
	}
}

func parseCreateTodo(body []byte) (string, error) {
	fields, verr := decodeObject(body)
	if verr != nil {
		return "", verr
	}
	raw, ok := fields["title"]
	if !ok {
		return "", invalid(Issue{Code: "invalid_type", Expected: "string", Received: "undefined", Path: []any{"title"}, Message: titleRequired})
	}
	var title string
	if jsonType(raw) != "string" || json.Unmarshal(raw, &title) != nil {
		return "", invalid(Issue{Code: "invalid_type", Expected: "string", Received: jsonType(raw), Path: []any{"title"}, Message: titleRequired})
	}
	if title == "" {
		return "", invalid(titleTooSmall())
	}
	return title, nil
}

// parseUpdateTodo accepts any subset of title and completed. Unknown fields
// are ignored and an empty object is a valid no-op patch.
func parseUpdateTodo(body []byte) (store.TodoPatch, error) {
	fields, verr := decodeObject(body)
	if verr != nil {
		return store.TodoPatch{}, verr
	}

	var (
		patch  store.TodoPatch
		issues []Issue
	)
	if raw, ok := fields["title"]; ok {
		var title string
		switch {
		case jsonType(raw) != "string" || json.Unmarshal(raw, &title) != nil:
			issues = append(issues, Issue{Code: "invalid_type", Expected: "string", Received: jsonType(raw), Path: []any{"title"}, Message: "Expected string, received " + jsonType(raw)})
		case title == "":
			issues = append(issues, titleTooSmall())
		default:
			patch.Title = &title
		}
	}
	if raw, ok := fields["completed"]; ok {
		var completed bool
		if jsonType(raw) != "boolean" || json.Unmarshal(raw, &completed) != nil {
			issues = append(issues, Issue{Code: "invalid_type", Expected: "boolean", Received: jsonType(raw), Path: []any{"completed"}, Message: "Expected boolean, received " + jsonType(raw)})
		} else {
			patch.Completed = &completed
		}
	}
	if len(issues) > 0 {
		return store.TodoPatch{}, invalid(issues...)
	}
	return patch, nil
}
