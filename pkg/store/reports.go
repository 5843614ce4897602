package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// ReportChannels manages report fan-out recipients.
type ReportChannels struct {
	g *Gateway
}

// NewReportChannels creates the report-channel repository.
func NewReportChannels(g *Gateway) *ReportChannels {
	return &ReportChannels{g: g}
}

// Recipients returns the active recipient list for one report/channel pair.
func (r *ReportChannels) Recipients(ctx context.Context, reportType, channelType string) ([]string, error) {
	row, err := r.g.QueryOne(ctx,
		`SELECT recipients FROM report_channels
		 WHERE report_type = $1 AND channel_type = $2 AND is_active = TRUE`,
		reportType, channelType)
	if err != nil {
		return nil, err
	}
	return asJSONStrings(row["recipients"]), nil
}

// ActiveChannels returns all active channel rows for one report type.
func (r *ReportChannels) ActiveChannels(ctx context.Context, reportType string) ([]*models.ReportChannel, error) {
	rows, err := r.g.Query(ctx,
		`SELECT id, report_type, channel_type, recipients, is_active
		 FROM report_channels WHERE report_type = $1 AND is_active = TRUE`, reportType)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ReportChannel, 0, len(rows))
	for _, row := range rows {
		out = append(out, &models.ReportChannel{
			ID:          asInt64(row["id"]),
			ReportType:  asString(row["report_type"]),
			ChannelType: asString(row["channel_type"]),
			Recipients:  asJSONStrings(row["recipients"]),
			IsActive:    asBool(row["is_active"]),
		})
	}
	return out, nil
}

// AddRecipient appends a recipient if not already present.
func (r *ReportChannels) AddRecipient(ctx context.Context, reportType, channelType, recipient string) error {
	return r.mutateRecipients(ctx, reportType, channelType, func(list []string) []string {
		if slices.Contains(list, recipient) {
			return list
		}
		return append(list, recipient)
	})
}

// RemoveRecipient drops a recipient from the list.
func (r *ReportChannels) RemoveRecipient(ctx context.Context, reportType, channelType, recipient string) error {
	return r.mutateRecipients(ctx, reportType, channelType, func(list []string) []string {
		return slices.DeleteFunc(list, func(s string) bool { return s == recipient })
	})
}

func (r *ReportChannels) mutateRecipients(ctx context.Context, reportType, channelType string, fn func([]string) []string) error {
	return r.g.Tx(ctx, func(tx *Tx) error {
		row, err := tx.QueryOne(ctx,
			`SELECT recipients FROM report_channels
			 WHERE report_type = $1 AND channel_type = $2 FOR UPDATE`,
			reportType, channelType)
		if err != nil {
			if err == services.ErrNotFound {
				// First recipient creates the row.
				raw, mErr := json.Marshal(fn(nil))
				if mErr != nil {
					return mErr
				}
				_, iErr := tx.Exec(ctx, `INSERT INTO report_channels (report_type, channel_type, recipients, is_active)
					VALUES ($1, $2, $3::jsonb, TRUE)`, reportType, channelType, string(raw))
				return iErr
			}
			return err
		}

		updated := fn(asJSONStrings(row["recipients"]))
		if updated == nil {
			updated = []string{}
		}
		raw, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal recipients: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE report_channels SET recipients = $3::jsonb, updated_at = NOW()
			WHERE report_type = $1 AND channel_type = $2`, reportType, channelType, string(raw))
		return err
	})
}
