package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RenderTemplate substitutes {key} placeholders with variable values.
// Composite values render as JSON, nil renders as "null", and doubled braces
// escape to literal braces so prompts can contain JSON examples.
func RenderTemplate(tpl string, vars map[string]any) string {
	const (
		openSentinel  = "\x00ob\x00"
		closeSentinel = "\x00cb\x00"
	)
	out := strings.ReplaceAll(tpl, "{{", openSentinel)
	out = strings.ReplaceAll(out, "}}", closeSentinel)

	for key, val := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", renderValue(val))
	}

	out = strings.ReplaceAll(out, openSentinel, "{")
	out = strings.ReplaceAll(out, closeSentinel, "}")
	return out
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case map[string]any, []any, []string, []map[string]any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", val)
	}
}
