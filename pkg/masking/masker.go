// Package masking hides credentials before they reach logs or the sync log.
package masking

import (
	"regexp"
	"strings"
)

const replacement = "***MASKED***"

// patterns catch secrets that show up embedded in free text, e.g. Telegram
// bot URLs or provider API keys.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]{20,}`),       // Telegram bot token
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),           // OpenAI/Anthropic style keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{30,}`),          // Google API keys
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~-]+`), // Authorization headers
}

// sensitiveKeys are map keys whose values are masked wholesale.
var sensitiveKeys = map[string]bool{
	"api_key":        true,
	"app_password":   true,
	"password":       true,
	"bot_token":      true,
	"client_secret":  true,
	"refresh_token":  true,
	"access_token":   true,
	"webhook_secret": true,
}

// Mask replaces credential-shaped substrings in free text.
func Mask(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, replacement)
	}
	return s
}

// MaskMap returns a copy of details with sensitive values masked. Nested maps
// are handled recursively.
func MaskMap(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = replacement
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = Mask(val)
		case map[string]any:
			out[k] = MaskMap(val)
		default:
			out[k] = v
		}
	}
	return out
}
