package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/store"
	"github.com/secondbrainhq/secondbrain/pkg/textproc"
)

var (
	errInvalidCapture = fmt.Errorf("%w: capture", services.ErrInvalidInput)
	errNoMatch        = fmt.Errorf("%w: entity match", services.ErrNotFound)
)

// Intents the intent agent may return beyond plain creation.
const (
	intentUnclear  = "unclear"
	intentComplete = "complete"
	intentDelete   = "delete"
	intentUpdate   = "update"
)

// createTables are the categories the intent agent may choose.
var createTables = map[string]bool{
	"tasks": true, "ideas": true, "projects": true,
	"people": true, "calendar_events": true, "events": true,
}

// handleCreate classifies a prefix-less capture against the existing data:
// search hits feed the intent agent, whose verdict routes to a trivial
// mutation, the structure agent, or a clarification.
func (o *Orchestrator) handleCreate(ctx context.Context, text string) (*Result, error) {
	matches, err := o.matcher.FindMatches(ctx, text)
	if err != nil {
		return nil, err
	}

	classification, err := o.agents.Execute(ctx, models.AgentIntent, map[string]any{
		"text":    text,
		"matches": matchCandidates(matches),
	})
	if err != nil {
		return nil, err
	}

	intent, _ := classification["intent"].(string)
	if intent == "" {
		intent = textproc.IntentCreate
	}
	confidence := floatValue(classification["confidence"])
	if intent == intentUnclear || confidence < o.cfg.ConfidenceThreshold(ctx) {
		return o.clarifyCreate(ctx, text, classification, matches)
	}
	return o.runIntent(ctx, text, intent, classification, confidence)
}

// runIntent executes a classified capture. complete and delete touch the
// matched row directly; create and update go through the structure agent.
func (o *Orchestrator) runIntent(ctx context.Context, text, intent string, classification map[string]any, confidence float64) (*Result, error) {
	switch intent {
	case intentComplete, intentDelete:
		table, id, label := targetRef(classification)
		if table == "" || id == 0 {
			return nil, fmt.Errorf("%w: %s without a target", errInvalidCapture, intent)
		}
		return o.applySimple(ctx, text, intent, table, id, label, confidence)
	case intentUpdate:
		return o.runUpdate(ctx, text, classification, confidence)
	case textproc.IntentCreate:
		return o.runCreate(ctx, text, classification, confidence)
	}
	return nil, fmt.Errorf("%w: unknown intent %q", errInvalidCapture, intent)
}

func (o *Orchestrator) runCreate(ctx context.Context, text string, classification map[string]any, confidence float64) (*Result, error) {
	table, _ := classification["category"].(string)
	if !createTables[table] {
		return o.clarifyCreate(ctx, text, classification, nil)
	}

	now := time.Now().In(o.cfg.Timezone(ctx))
	hints := textproc.Preprocess(text, table, now)

	structured, err := o.agents.Execute(ctx, models.AgentStructure, map[string]any{
		"text":     text,
		"category": table,
		"today":    now.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	data := buildEntityData(table, structured, hints)

	var personName, projectName string
	if table == "tasks" || table == "calendar_events" {
		personName, _ = structured["person"].(string)
		projectName, _ = structured["project"].(string)
	}

	var id int64
	err = o.gateway.Tx(ctx, func(tx *store.Tx) error {
		if personName != "" {
			personID, linkErr := o.linkPerson(ctx, tx, personName)
			if linkErr != nil {
				return linkErr
			}
			data["person_id"] = personID
		}
		if projectName != "" {
			if projectID, found, linkErr := o.linkProject(ctx, projectName); linkErr != nil {
				return linkErr
			} else if found {
				data["project_id"] = projectID
			}
		}

		var txErr error
		id, txErr = o.entities.Insert(ctx, tx, table, data)
		if txErr != nil {
			return txErr
		}
		return o.logInbox(ctx, tx, &models.InboxLog{
			CapturedText: text,
			Intent:       textproc.IntentCreate,
			TargetTable:  table,
			TargetID:     &id,
			Changes:      data,
			Confidence:   confidence,
		})
	})
	if err != nil {
		return nil, err
	}

	label, _ := data[store.NameColumn(table)].(string)
	o.logger.Info("entity created", "table", table, "id", id, "confidence", confidence)
	return &Result{
		Intent:   textproc.IntentCreate,
		Success:  true,
		Table:    table,
		EntityID: id,
		Message:  createMessage(table, label, data),
	}, nil
}

// runUpdate applies agent-extracted field changes to the classified target.
func (o *Orchestrator) runUpdate(ctx context.Context, text string, classification map[string]any, confidence float64) (*Result, error) {
	table, id, label := targetRef(classification)
	if table == "" || id == 0 {
		return nil, fmt.Errorf("%w: update without a target", errInvalidCapture)
	}

	structured, err := o.agents.Execute(ctx, models.AgentStructure, map[string]any{
		"text":     text,
		"category": table,
		"today":    time.Now().In(o.cfg.Timezone(ctx)).Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	changes, _ := structured["changes"].(map[string]any)
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: no changes extracted from %q", errInvalidCapture, text)
	}

	err = o.gateway.Tx(ctx, func(tx *store.Tx) error {
		if txErr := o.entities.Update(ctx, tx, table, id, changes); txErr != nil {
			return txErr
		}
		return o.logInbox(ctx, tx, &models.InboxLog{
			CapturedText: text,
			Intent:       intentUpdate,
			TargetTable:  table,
			TargetID:     &id,
			Changes:      changes,
			Confidence:   confidence,
		})
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("entity updated", "table", table, "id", id)
	return &Result{
		Intent:   intentUpdate,
		Success:  true,
		Table:    table,
		EntityID: id,
		Message:  fmt.Sprintf("%s aktualisiert.", labelOr(label, table, id)),
	}, nil
}

// applySimple closes or removes the matched row without structuring: a
// completion utterance resolves the existing entity instead of creating a
// duplicate.
func (o *Orchestrator) applySimple(ctx context.Context, text, intent, table string, id int64, label string, confidence float64) (*Result, error) {
	err := o.gateway.Tx(ctx, func(tx *store.Tx) error {
		var txErr error
		if intent == intentComplete {
			txErr = o.entities.MarkDone(ctx, tx, table, id)
		} else {
			txErr = o.entities.SoftDelete(ctx, tx, table, id)
		}
		if txErr != nil {
			return txErr
		}
		return o.logInbox(ctx, tx, &models.InboxLog{
			CapturedText: text,
			Intent:       intent,
			TargetTable:  table,
			TargetID:     &id,
			Changes:      map[string]any{"action": intent},
			Confidence:   confidence,
		})
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("entity resolved directly", "table", table, "id", id, "intent", intent)
	msg := fmt.Sprintf("%s als erledigt markiert.", labelOr(label, table, id))
	if intent == intentDelete {
		msg = fmt.Sprintf("%s gelöscht.", labelOr(label, table, id))
	}
	return &Result{
		Intent:   intent,
		Success:  true,
		Table:    table,
		EntityID: id,
		Message:  msg,
	}, nil
}

// clarifyCreate parks an ambiguous capture as a choice request, keeping the
// classification so the answer can resume where the capture stopped.
func (o *Orchestrator) clarifyCreate(ctx context.Context, text string, classification map[string]any, matches []store.Match) (*Result, error) {
	entries := optionEntries(classification["options"], matches)
	if len(entries) == 0 {
		entries = categoryOptions()
	}
	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		label, _ := e["label"].(string)
		table, _ := e["table"].(string)
		labels = append(labels, fmt.Sprintf("%s (%s)", label, table))
	}

	question, _ := classification["question"].(string)
	if question == "" {
		question = fmt.Sprintf("Was soll ich mit %q machen?", text)
	}

	req, err := o.hitl.Create(ctx, "pipeline", models.RequestTypeChoice, question, labels,
		map[string]any{"text": text, "intent_result": classification, "options": entries})
	if err != nil {
		return nil, err
	}

	err = o.gateway.Tx(ctx, func(tx *store.Tx) error {
		return o.logInbox(ctx, tx, &models.InboxLog{
			CapturedText: text,
			Intent:       textproc.IntentCreate,
			Confidence:   floatValue(classification["confidence"]),
			NeedsReview:  true,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Intent:          textproc.IntentCreate,
		Success:         true,
		Message:         req.Question,
		ClarificationID: req.ID,
		Options:         labels,
	}, nil
}

// categoryOptions is the fallback choice set when neither the agent nor the
// search offered concrete candidates.
func categoryOptions() []map[string]any {
	return []map[string]any{
		{"table": "tasks", "label": "Aufgabe"},
		{"table": "ideas", "label": "Idee"},
		{"table": "projects", "label": "Projekt"},
		{"table": "people", "label": "Kontakt"},
		{"table": "calendar_events", "label": "Termin"},
	}
}

// optionEntries normalises agent-proposed options, falling back to the search
// hits themselves.
func optionEntries(raw any, matches []store.Match) []map[string]any {
	var out []map[string]any
	if list, ok := raw.([]any); ok {
		for _, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if table, _ := entry["table"].(string); table != "" {
				out = append(out, entry)
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range matches {
		out = append(out, map[string]any{"table": m.Table, "id": m.ID, "label": m.Name})
	}
	return out
}

// matchCandidates shapes search hits for the intent agent's prompt.
func matchCandidates(matches []store.Match) []map[string]any {
	out := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		out = append(out, map[string]any{
			"table":       m.Table,
			"id":          m.ID,
			"name":        m.Name,
			"match_score": m.Score,
		})
	}
	return out
}

// targetRef reads the agent's target reference {table, id, label}.
func targetRef(classification map[string]any) (string, int64, string) {
	t, _ := classification["target"].(map[string]any)
	table, _ := t["table"].(string)
	label, _ := t["label"].(string)
	return table, int64(floatValue(t["id"])), label
}

func labelOr(label, table string, id int64) string {
	if label != "" {
		return label
	}
	return fmt.Sprintf("%s #%d", table, id)
}

// linkPerson resolves a person reference by exact name, creating the contact
// inside the caller's transaction when unknown.
func (o *Orchestrator) linkPerson(ctx context.Context, tx *store.Tx, name string) (int64, error) {
	contact, err := o.contacts.FindByName(ctx, name)
	if err == nil {
		return contact.ID, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return 0, err
	}
	return o.contacts.InsertTx(ctx, tx, &models.Contact{
		Name:       name,
		SyncStatus: models.SyncStatusPending,
	})
}

// linkProject resolves a project reference by partial match. Unknown projects
// are not created implicitly.
func (o *Orchestrator) linkProject(ctx context.Context, name string) (int64, bool, error) {
	row, err := o.gateway.QueryOne(ctx,
		`SELECT id FROM projects WHERE deleted_at IS NULL AND name ILIKE $1
		 ORDER BY updated_at DESC LIMIT 1`, "%"+name+"%")
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	id, _ := row["id"].(int64)
	return id, true, nil
}

// buildEntityData merges agent output with deterministic hints. Agent fields
// win; hints fill the gaps.
func buildEntityData(table string, structured map[string]any, hints textproc.Hints) map[string]any {
	data := make(map[string]any)
	for k, v := range structured {
		switch k {
		case "person", "project", "confidence", "category", "intent":
			continue
		}
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		data[k] = v
	}

	if hints.Status != "" {
		if _, ok := data["status"]; !ok {
			data["status"] = hints.Status
		}
	}
	switch table {
	case "tasks":
		if _, ok := data["priority"]; !ok {
			data["priority"] = hints.Priority
		}
		if _, ok := data["due_date"]; !ok && hints.DueDate != nil {
			data["due_date"] = hints.DueDate.Format("2006-01-02")
		}
	case "calendar_events":
		if _, ok := data["start_time"]; !ok && hints.StartTime != nil {
			data["start_time"] = *hints.StartTime
		}
	}
	return data
}

func createMessage(table, label string, data map[string]any) string {
	nouns := map[string]string{
		"tasks": "Aufgabe", "ideas": "Idee", "projects": "Projekt",
		"people": "Kontakt", "calendar_events": "Termin", "events": "Ereignis",
	}
	msg := fmt.Sprintf("%s angelegt: %s", nouns[table], label)
	if due, ok := data["due_date"].(string); ok {
		msg += fmt.Sprintf(" (fällig %s)", due)
	}
	return msg
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
			return f
		}
	}
	return 0
}
