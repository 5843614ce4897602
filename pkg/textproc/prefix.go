// Package textproc handles the deterministic text stages that run before any
// model call: intent prefix routing, German date and priority extraction, and
// keyword-based entity matching.
package textproc

import "strings"

// Intents routed by the capture prefix.
const (
	IntentCreate = "create"
	IntentQuery  = "query"
	IntentEdit   = "edit"
)

// ParsePrefix splits the routing prefix off captured text. "?" routes to
// query, "!" to edit, anything else is a create.
func ParsePrefix(text string) (intent, remainder string) {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "?"):
		return IntentQuery, strings.TrimSpace(trimmed[1:])
	case strings.HasPrefix(trimmed, "!"):
		return IntentEdit, strings.TrimSpace(trimmed[1:])
	default:
		return IntentCreate, trimmed
	}
}
