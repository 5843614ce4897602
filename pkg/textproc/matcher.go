package textproc

import (
	"context"
	"strings"

	"github.com/secondbrainhq/secondbrain/pkg/config"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// ExtractKeywords tokenises text for entity matching: lowercase, non-word
// characters stripped (umlauts kept), stopwords and short tokens dropped,
// duplicates removed in order.
func ExtractKeywords(text string, stopwords []string, minLength int) []string {
	stops := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), wordRunes) {
		if len([]rune(tok)) < minLength || stops[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Matcher finds existing entities referenced by captured text.
type Matcher struct {
	entities *store.Entities
	cfg      *config.Manager
}

// NewMatcher creates a matcher over the entity search index.
func NewMatcher(entities *store.Entities, cfg *config.Manager) *Matcher {
	return &Matcher{entities: entities, cfg: cfg}
}

// Keywords extracts match keywords using the configured stopword list.
func (m *Matcher) Keywords(ctx context.Context, text string) []string {
	return ExtractKeywords(text, m.cfg.Stopwords(ctx), m.cfg.KeywordMinLength(ctx))
}

// FindMatches searches all entity tables for the text's keywords, returning
// the best-scored matches capped at the configured maximum.
func (m *Matcher) FindMatches(ctx context.Context, text string) ([]store.Match, error) {
	keywords := m.Keywords(ctx, text)
	if len(keywords) == 0 {
		return nil, nil
	}
	return m.entities.Search(ctx, keywords, m.cfg.MaxMatches(ctx))
}
