package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// Field describes one expected output field for Coerce.
type Field struct {
	Type     string // string, int, float, bool, list, dict
	Required bool
	Default  any
}

// truthy covers the spellings models use for booleans, German included.
var truthy = map[string]bool{
	"true": true, "1": true, "yes": true, "ja": true,
}

// Coerce validates an extracted object against a field schema, filling
// defaults and converting loosely typed values. Unknown keys pass through
// untouched.
func Coerce(data map[string]any, schema map[string]Field) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for name, field := range schema {
		v, present := out[name]
		if !present || v == nil {
			if field.Required {
				return nil, fmt.Errorf("%w: missing required field %q", services.ErrInvalidInput, name)
			}
			if field.Default != nil {
				out[name] = field.Default
			}
			continue
		}
		coerced, err := coerceValue(v, field.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", services.ErrInvalidInput, name, err)
		}
		out[name] = coerced
	}
	return out, nil
}

func coerceValue(v any, typ string) (any, error) {
	switch typ {
	case "", "string":
		switch val := v.(type) {
		case string:
			return val, nil
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(val), nil
		}
		return fmt.Sprintf("%v", v), nil

	case "int":
		switch val := v.(type) {
		case float64:
			return int(val), nil
		case int:
			return val, nil
		case string:
			// Models emit "3" and "3.0" interchangeably.
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				return int(f), nil
			}
			return nil, fmt.Errorf("cannot parse %q as int", val)
		}
		return nil, fmt.Errorf("cannot convert %T to int", v)

	case "float":
		switch val := v.(type) {
		case float64:
			return val, nil
		case int:
			return float64(val), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				return f, nil
			}
			return nil, fmt.Errorf("cannot parse %q as float", val)
		}
		return nil, fmt.Errorf("cannot convert %T to float", v)

	case "bool":
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			return truthy[strings.ToLower(strings.TrimSpace(val))], nil
		case float64:
			return val != 0, nil
		}
		return nil, fmt.Errorf("cannot convert %T to bool", v)

	case "list":
		switch val := v.(type) {
		case []any:
			return val, nil
		case string:
			// Comma-separated fallback when the model skips the array syntax.
			parts := strings.Split(val, ",")
			list := make([]any, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					list = append(list, p)
				}
			}
			return list, nil
		}
		return nil, fmt.Errorf("cannot convert %T to list", v)

	case "dict":
		if val, ok := v.(map[string]any); ok {
			return val, nil
		}
		return nil, fmt.Errorf("cannot convert %T to dict", v)
	}
	return nil, fmt.Errorf("unknown field type %q", typ)
}

// Strings converts a coerced list value into a string slice.
func Strings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
