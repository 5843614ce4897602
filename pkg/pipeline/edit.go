package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/notify"
	"github.com/secondbrainhq/secondbrain/pkg/store"
	"github.com/secondbrainhq/secondbrain/pkg/textproc"
)

// Edit actions.
const (
	actionUpdate   = "update"
	actionComplete = "complete"
	actionDelete   = "delete"
)

// criticalPeopleFields are contact fields whose edits need explicit approval
// before they later sync out to CardDAV providers.
var criticalPeopleFields = map[string]bool{
	"name": true, "first_name": true, "last_name": true,
	"phone": true, "email": true, "context": true,
}

// completableTables have a status column that "done" applies to.
var completableTables = map[string]bool{
	"tasks": true, "projects": true, "ideas": true,
}

func (o *Orchestrator) handleEdit(ctx context.Context, text string, forced *store.Match, confirmed bool) (*Result, error) {
	target := forced
	if target == nil {
		matches, err := o.matcher.FindMatches(ctx, text)
		if err != nil {
			return nil, err
		}
		threshold := o.cfg.ConfidenceThreshold(ctx)
		if len(matches) == 0 || matches[0].Score < threshold ||
			(len(matches) > 1 && matches[0].Score == matches[1].Score) {
			return o.clarifyEdit(ctx, text, matches)
		}
		target = &matches[0]
	}

	action, changes, err := o.planEdit(ctx, text, target)
	if err != nil {
		return nil, err
	}

	critical := action == actionDelete ||
		(target.Table == "people" && hasCriticalField(changes))
	if critical && !confirmed {
		return o.requestConfirmation(ctx, text, target, action, changes)
	}

	return o.applyEdit(ctx, text, target.Table, target.ID, target.Name, action, changes, target.Score)
}

// planEdit decides what the edit does: keyword-driven completion or deletion,
// otherwise agent-extracted field changes.
func (o *Orchestrator) planEdit(ctx context.Context, text string, target *store.Match) (string, map[string]any, error) {
	lower := strings.ToLower(text)
	for _, w := range o.cfg.DeletionKeywords(ctx) {
		if strings.Contains(lower, strings.ToLower(w)) {
			return actionDelete, nil, nil
		}
	}
	if completableTables[target.Table] {
		for _, w := range o.cfg.CompletionKeywords(ctx) {
			if strings.Contains(lower, strings.ToLower(w)) {
				return actionComplete, nil, nil
			}
		}
	}

	out, err := o.agents.Execute(ctx, models.AgentEdit, map[string]any{
		"text":   text,
		"table":  target.Table,
		"entity": target.Data,
	})
	if err != nil {
		return "", nil, err
	}
	changes, _ := out["changes"].(map[string]any)
	if len(changes) == 0 {
		return "", nil, fmt.Errorf("%w: no changes extracted from %q", errInvalidCapture, text)
	}
	return actionUpdate, changes, nil
}

// clarifyEdit asks which entity the capture meant.
func (o *Orchestrator) clarifyEdit(ctx context.Context, text string, matches []store.Match) (*Result, error) {
	options := make([]string, 0, len(matches))
	for _, m := range matches {
		options = append(options, fmt.Sprintf("%s (%s)", m.Name, m.Table))
	}
	question := fmt.Sprintf("Welchen Eintrag meinst du mit %q?", text)
	if len(options) == 0 {
		question = fmt.Sprintf("Ich finde keinen Eintrag zu %q. Welchen meinst du?", text)
	}

	req, err := o.hitl.Create(ctx, "pipeline", models.RequestTypeChoice, question, options,
		map[string]any{"text": text, "intent": textproc.IntentEdit})
	if err != nil {
		return nil, err
	}

	err = o.gateway.Tx(ctx, func(tx *store.Tx) error {
		return o.logInbox(ctx, tx, &models.InboxLog{
			CapturedText: text,
			Intent:       textproc.IntentEdit,
			NeedsReview:  true,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Intent:          textproc.IntentEdit,
		Success:         true,
		Message:         question,
		ClarificationID: req.ID,
		Options:         options,
	}, nil
}

// requestConfirmation parks a critical action until the user approves it.
func (o *Orchestrator) requestConfirmation(ctx context.Context, text string, target *store.Match, action string, changes map[string]any) (*Result, error) {
	pending := map[string]any{
		"action":  action,
		"table":   target.Table,
		"id":      target.ID,
		"name":    target.Name,
		"text":    text,
		"changes": changes,
	}
	question := fmt.Sprintf("%q (%s) wirklich löschen?", target.Name, target.Table)
	if action != actionDelete {
		question = fmt.Sprintf("Kontaktdaten von %q wirklich ändern?", target.Name)
	}

	req, err := o.hitl.Create(ctx, "pipeline", models.RequestTypeApproval, question, nil, pending)
	if err != nil {
		return nil, err
	}

	return &Result{
		Intent:               textproc.IntentEdit,
		Success:              true,
		Message:              question,
		ClarificationID:      req.ID,
		RequiresConfirmation: true,
		PendingAction:        pending,
	}, nil
}

// executePending replays an approved critical action.
func (o *Orchestrator) executePending(ctx context.Context, chctx notify.ChannelContext, pending map[string]any) (*Result, error) {
	table, _ := pending["table"].(string)
	action, _ := pending["action"].(string)
	name, _ := pending["name"].(string)
	text, _ := pending["text"].(string)
	changes, _ := pending["changes"].(map[string]any)
	id := int64(floatValue(pending["id"]))
	if id == 0 {
		if n, ok := pending["id"].(int64); ok {
			id = n
		}
	}
	if table == "" || action == "" || id == 0 {
		return nil, fmt.Errorf("%w: malformed pending action", errInvalidCapture)
	}

	res, err := o.applyEdit(ctx, text, table, id, name, action, changes, 1.0)
	if err != nil {
		return nil, err
	}
	if res.Message != "" {
		o.router.Respond(ctx, chctx, res.Message)
	}
	return res, nil
}

func (o *Orchestrator) applyEdit(ctx context.Context, text, table string, id int64, name, action string, changes map[string]any, confidence float64) (*Result, error) {
	err := o.gateway.Tx(ctx, func(tx *store.Tx) error {
		var txErr error
		switch action {
		case actionComplete:
			txErr = o.entities.MarkDone(ctx, tx, table, id)
		case actionDelete:
			txErr = o.entities.SoftDelete(ctx, tx, table, id)
		default:
			txErr = o.entities.Update(ctx, tx, table, id, changes)
		}
		if txErr != nil {
			return txErr
		}
		return o.logInbox(ctx, tx, &models.InboxLog{
			CapturedText: text,
			Intent:       textproc.IntentEdit,
			TargetTable:  table,
			TargetID:     &id,
			Changes:      editChanges(action, changes),
			Confidence:   confidence,
		})
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("entity edited", "table", table, "id", id, "action", action)
	return &Result{
		Intent:   textproc.IntentEdit,
		Success:  true,
		Table:    table,
		EntityID: id,
		Message:  editMessage(action, name),
	}, nil
}

func editChanges(action string, changes map[string]any) map[string]any {
	if action == actionUpdate {
		return changes
	}
	return map[string]any{"action": action}
}

func editMessage(action, name string) string {
	switch action {
	case actionComplete:
		return fmt.Sprintf("%s als erledigt markiert.", name)
	case actionDelete:
		return fmt.Sprintf("%s gelöscht.", name)
	default:
		return fmt.Sprintf("%s aktualisiert.", name)
	}
}

func hasCriticalField(changes map[string]any) bool {
	for k := range changes {
		if criticalPeopleFields[k] {
			return true
		}
	}
	return false
}
