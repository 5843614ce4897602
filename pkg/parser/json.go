// Package parser extracts structured data from model output. Models wrap
// JSON in prose and code fences in unpredictable ways, so extraction works
// through a chain of progressively looser strategies.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	anyFence  = regexp.MustCompile("(?s)```(?:[a-zA-Z]*)?\\s*(.*?)```")
)

// Extract pulls the first JSON value out of raw model output. Strategies in
// order: the whole string, a ```json fence, any fence, the first balanced
// object, the first balanced array.
func Extract(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty model output", services.ErrInvalidInput)
	}

	if v, ok := tryUnmarshal(trimmed); ok {
		return v, nil
	}
	if m := jsonFence.FindStringSubmatch(trimmed); m != nil {
		if v, ok := tryUnmarshal(strings.TrimSpace(m[1])); ok {
			return v, nil
		}
	}
	if m := anyFence.FindStringSubmatch(trimmed); m != nil {
		if v, ok := tryUnmarshal(strings.TrimSpace(m[1])); ok {
			return v, nil
		}
	}
	if s := balancedSlice(trimmed, '{', '}'); s != "" {
		if v, ok := tryUnmarshal(s); ok {
			return v, nil
		}
	}
	if s := balancedSlice(trimmed, '[', ']'); s != "" {
		if v, ok := tryUnmarshal(s); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON found in model output", services.ErrInvalidInput)
}

// ExtractObject is Extract constrained to a JSON object.
func ExtractObject(raw string) (map[string]any, error) {
	v, err := Extract(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: model output is not a JSON object", services.ErrInvalidInput)
	}
	return obj, nil
}

func tryUnmarshal(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

// balancedSlice returns the first balanced open..close run, tracking string
// literals and escapes so braces inside values do not confuse the count.
func balancedSlice(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
