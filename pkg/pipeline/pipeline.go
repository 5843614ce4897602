// Package pipeline turns captured text into database mutations and answers.
// A deterministic prefix routes to create, edit, or query handling; LLM
// agents fill in structure; anything uncertain or destructive detours through
// a human request before it touches data.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/secondbrainhq/secondbrain/pkg/agent"
	"github.com/secondbrainhq/secondbrain/pkg/config"
	"github.com/secondbrainhq/secondbrain/pkg/hitl"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/notify"
	"github.com/secondbrainhq/secondbrain/pkg/store"
	"github.com/secondbrainhq/secondbrain/pkg/textproc"
)

// Result is the pipeline's answer to one capture.
type Result struct {
	Intent               string         `json:"intent"`
	Success              bool           `json:"success"`
	Message              string         `json:"message"`
	Table                string         `json:"table,omitempty"`
	EntityID             int64          `json:"entity_id,omitempty"`
	ClarificationID      int64          `json:"clarification_id,omitempty"`
	Options              []string       `json:"options,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation,omitempty"`
	PendingAction        map[string]any `json:"pending_action,omitempty"`
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	matcher  *textproc.Matcher
	entities *store.Entities
	contacts *store.Contacts
	inbox    *store.InboxLogs
	gateway  *store.Gateway
	agents   *agent.Runner
	hitl     *hitl.Service
	cfg      *config.Manager
	router   *notify.Router
	logger   *slog.Logger
}

// NewOrchestrator creates the pipeline.
func NewOrchestrator(
	matcher *textproc.Matcher,
	entities *store.Entities,
	contacts *store.Contacts,
	inbox *store.InboxLogs,
	gateway *store.Gateway,
	agents *agent.Runner,
	hitlSvc *hitl.Service,
	cfg *config.Manager,
	router *notify.Router,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		matcher:  matcher,
		entities: entities,
		contacts: contacts,
		inbox:    inbox,
		gateway:  gateway,
		agents:   agents,
		hitl:     hitlSvc,
		cfg:      cfg,
		router:   router,
		logger:   logger.With("component", "pipeline"),
	}
}

// Process handles one capture. confirmed and pendingAction replay a
// previously returned critical action after the user approved it.
func (o *Orchestrator) Process(ctx context.Context, text string, chctx notify.ChannelContext, confirmed bool, pendingAction map[string]any) (*Result, error) {
	if pendingAction != nil {
		if !confirmed {
			return &Result{
				Intent:  textproc.IntentEdit,
				Message: "Aktion verworfen.",
				Success: true,
			}, nil
		}
		return o.executePending(ctx, chctx, pendingAction)
	}

	intent, remainder := textproc.ParsePrefix(text)
	if remainder == "" {
		return nil, fmt.Errorf("%w: empty capture", errInvalidCapture)
	}

	var (
		res *Result
		err error
	)
	switch intent {
	case textproc.IntentQuery:
		res, err = o.handleQuery(ctx, remainder)
	case textproc.IntentEdit:
		res, err = o.handleEdit(ctx, remainder, nil, confirmed)
	default:
		res, err = o.handleCreate(ctx, remainder)
	}
	if err != nil {
		return nil, err
	}

	if res.Message != "" {
		o.router.Respond(ctx, chctx, res.Message)
	}
	return res, nil
}

// optionTable pulls the table out of a clarification option like
// "Zahnarzt anrufen (tasks)".
var optionTable = regexp.MustCompile(`\(([a-z_]+)\)$`)

// RespondToClarification answers a pending clarification and resumes the
// stage that asked it: a parked create classification re-dispatches with the
// chosen entity at full confidence, an edit ambiguity re-runs the edit against
// the chosen match.
func (o *Orchestrator) RespondToClarification(ctx context.Context, requestID int64, response string, chctx notify.ChannelContext) (*Result, error) {
	req, err := o.hitl.Respond(ctx, requestID, models.RequestAnswered, response)
	if err != nil {
		return nil, err
	}

	text, _ := req.Context["text"].(string)
	if text == "" {
		return &Result{Intent: textproc.IntentEdit, Success: true, Message: "Antwort gespeichert."}, nil
	}

	var res *Result
	if classification, ok := req.Context["intent_result"].(map[string]any); ok {
		res, err = o.resumeCreate(ctx, text, strings.TrimSpace(response), classification, req.Context["options"])
	} else {
		var target *store.Match
		target, err = o.resolveOption(ctx, strings.TrimSpace(response))
		if err != nil {
			return nil, err
		}
		res, err = o.handleEdit(ctx, text, target, false)
	}
	if err != nil {
		return nil, err
	}
	if res.Message != "" {
		o.router.Respond(ctx, chctx, res.Message)
	}
	return res, nil
}

// resumeCreate continues a parked capture classification with the user's
// choice. The chosen option pins the target, confidence goes to full, and the
// stored intent decides the action.
func (o *Orchestrator) resumeCreate(ctx context.Context, text, choice string, classification map[string]any, rawOptions any) (*Result, error) {
	m := optionTable.FindStringSubmatch(choice)
	if m == nil {
		return nil, fmt.Errorf("%w: cannot read table from option %q", errInvalidCapture, choice)
	}
	table := m[1]
	label := strings.TrimSpace(strings.TrimSuffix(choice, m[0]))

	if entry, ok := chosenOption(rawOptions, table, label); ok {
		classification["target"] = entry
	} else {
		classification["target"] = map[string]any{"table": table, "label": label}
	}
	classification["confidence"] = 1.0

	intent, _ := classification["intent"].(string)
	switch intent {
	case intentComplete, intentDelete, intentUpdate:
	default:
		intent = textproc.IntentCreate
		classification["category"] = table
	}
	return o.runIntent(ctx, text, intent, classification, 1.0)
}

// chosenOption finds the stored option entry matching the user's choice. The
// entries round-trip through JSON, so ids come back as float64.
func chosenOption(rawOptions any, table, label string) (map[string]any, bool) {
	list, ok := rawOptions.([]any)
	if !ok {
		return nil, false
	}
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t, _ := entry["table"].(string)
		l, _ := entry["label"].(string)
		if t == table && strings.EqualFold(l, label) {
			return entry, true
		}
	}
	return nil, false
}

// resolveOption turns a chosen option string back into the matched entity.
func (o *Orchestrator) resolveOption(ctx context.Context, option string) (*store.Match, error) {
	m := optionTable.FindStringSubmatch(option)
	if m == nil {
		return nil, fmt.Errorf("%w: cannot read table from option %q", errInvalidCapture, option)
	}
	table := m[1]
	name := strings.TrimSpace(strings.TrimSuffix(option, m[0]))

	keywords := textproc.ExtractKeywords(name, nil, 1)
	matches, err := o.entities.Search(ctx, keywords, o.cfg.MaxMatches(ctx))
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if matches[i].Table == table && strings.EqualFold(matches[i].Name, name) {
			match := matches[i]
			match.Score = 1.0
			return &match, nil
		}
	}
	for i := range matches {
		if matches[i].Table == table {
			match := matches[i]
			match.Score = 1.0
			return &match, nil
		}
	}
	return nil, fmt.Errorf("%w: no entity matching %q in %s", errNoMatch, name, table)
}

// logInbox writes the audit row inside the mutation's transaction.
func (o *Orchestrator) logInbox(ctx context.Context, tx *store.Tx, entry *models.InboxLog) error {
	return o.inbox.Insert(ctx, tx, entry)
}
