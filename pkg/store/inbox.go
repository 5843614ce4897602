package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/secondbrainhq/secondbrain/pkg/models"
)

// InboxLogs is the audit trail repository of the intent pipeline.
type InboxLogs struct {
	g *Gateway
}

// NewInboxLogs creates the inbox-log repository.
func NewInboxLogs(g *Gateway) *InboxLogs {
	return &InboxLogs{g: g}
}

// Insert writes one audit entry inside tx so the log commits atomically with
// the mutation it describes.
func (l *InboxLogs) Insert(ctx context.Context, tx *Tx, entry *models.InboxLog) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO inbox_log
		(captured_text, intent, target_table, target_id, changes, confidence, needs_review, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5::jsonb, $6, $7, NOW())`,
		entry.CapturedText, entry.Intent, entry.TargetTable, entry.TargetID,
		string(changes), entry.Confidence, entry.NeedsReview)
	return err
}

// List returns the newest entries, capped at limit.
func (l *InboxLogs) List(ctx context.Context, limit int) ([]*models.InboxLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.g.Query(ctx, `SELECT id, captured_text, intent, target_table, target_id,
		changes, confidence, needs_review, created_at
		FROM inbox_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.InboxLog, 0, len(rows))
	for _, row := range rows {
		entry := &models.InboxLog{
			ID:           asInt64(row["id"]),
			CapturedText: asString(row["captured_text"]),
			Intent:       asString(row["intent"]),
			TargetTable:  asString(row["target_table"]),
			TargetID:     asInt64Ptr(row["target_id"]),
			Changes:      asJSONMap(row["changes"]),
			Confidence:   asFloat64(row["confidence"]),
			NeedsReview:  asBool(row["needs_review"]),
		}
		if t := asTime(row["created_at"]); t != nil {
			entry.CreatedAt = *t
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DeleteOlderThan hard-deletes audit rows past the retention window. This is
// the administrative-cleanup path; regular code never hard-deletes.
func (l *InboxLogs) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	return l.g.Exec(ctx,
		"DELETE FROM inbox_log WHERE created_at < NOW() - make_interval(days => $1)", days)
}
