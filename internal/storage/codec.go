package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

func encodeProperties(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(data), nil
}

// decodeProperties reads a JSON property object, turning integral numbers
// into int64 so they round-trip the same way they do through Neo4j.
func decodeProperties(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var props map[string]any
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	if props == nil {
		props = map[string]any{}
	}
	for k, v := range props {
		props[k] = fromJSONNumber(v)
	}
	return props, nil
}

func fromJSONNumber(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = fromJSONNumber(t[i])
		}
		return t
	default:
		return v
	}
}

// placeholders returns "?,?,..." for n arguments and the values as []any.
func placeholders[T any](values []T) (string, []any) {
	marks := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		marks[i] = "?"
		args[i] = v
	}
	return strings.Join(marks, ","), args
}

// jsonPath addresses a top-level key of a JSON object.
func jsonPath(key string) string {
	return `$."` + key + `"`
}
