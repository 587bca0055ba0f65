package graph

import (
	"fmt"
	"math"
	"strconv"
)

// maxSafeInteger is the largest integer a float64 holds exactly.
const maxSafeInteger = 1 << 53

// NormalizeProperties returns a copy of props ready to be stored.
// Keys must be valid identifiers. Nil values are dropped, integral numbers
// become int64, and nested maps, lists of lists and lists mixing kinds
// are rejected since a property graph cannot hold them.
func NormalizeProperties(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if err := ValidateIdentifier("property", k); err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		nv, err := normalizeValue(v, true)
		if err != nil {
			return nil, fmt.Errorf("%w: property %q: %v", ErrInvalidArgument, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any, allowList bool) (any, error) {
	switch t := v.(type) {
	case string, bool, int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float32:
		return normalizeFloat(float64(t)), nil
	case float64:
		return normalizeFloat(t), nil
	case []any:
		if !allowList {
			return nil, fmt.Errorf("nested lists are not supported")
		}
		items := make([]any, 0, len(t))
		for _, item := range t {
			if item == nil {
				return nil, fmt.Errorf("lists must not contain null")
			}
			ni, err := normalizeValue(item, false)
			if err != nil {
				return nil, err
			}
			items = append(items, ni)
		}
		return homogeneous(items)
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return items, nil
	case map[string]any:
		return nil, fmt.Errorf("nested objects are not supported")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// homogeneous checks that every item of a list has the same kind. Integers
// and floats are both numbers; a list mixing them is stored as floats.
func homogeneous(items []any) ([]any, error) {
	hasFloat := false
	for i, item := range items {
		if _, ok := item.(float64); ok {
			hasFloat = true
		}
		if i > 0 && valueKind(item) != valueKind(items[0]) {
			return nil, fmt.Errorf("list items must all be of one kind, got %s and %s",
				valueKind(items[0]), valueKind(item))
		}
	}
	if hasFloat {
		for i, item := range items {
			if n, ok := item.(int64); ok {
				items[i] = float64(n)
			}
		}
	}
	return items, nil
}

func valueKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger {
		return int64(f)
	}
	return f
}

// DeriveID returns the identity of an entity: its id property, or its
// name when no id is given. Non-string values are stringified.
func DeriveID(props map[string]any) string {
	for _, key := range []string{"id", "name"} {
		if v, ok := props[key]; ok && v != nil {
			return Stringify(v)
		}
	}
	return ""
}

// Stringify renders a scalar property value the way searches compare it.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) <= maxSafeInteger {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
