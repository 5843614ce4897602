// Package hitl implements human-in-the-loop requests: questions the pipeline
// parks in the database until a person answers them through the API or a chat
// channel.
package hitl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

const (
	// DefaultWaitTimeout bounds synchronous waits for an answer.
	DefaultWaitTimeout = 5 * time.Minute
	// DefaultPollInterval is used when Wait is called with a zero interval.
	DefaultPollInterval = 2 * time.Second
)

// responseStatuses are the statuses a human response may set.
var responseStatuses = map[string]bool{
	models.RequestApproved: true,
	models.RequestRejected: true,
	models.RequestAnswered: true,
}

// Service manages human_requests rows.
type Service struct {
	g      *store.Gateway
	logger *slog.Logger
}

// NewService creates the HITL service.
func NewService(g *store.Gateway, logger *slog.Logger) *Service {
	return &Service{g: g, logger: logger.With("component", "hitl")}
}

const requestColumns = "id, automation, request_type, question, options, status, response, context, created_at, answered_at"

// Create stores a new pending request and returns it.
func (s *Service) Create(ctx context.Context, automation, requestType, question string, options []string, reqContext map[string]any) (*models.HumanRequest, error) {
	if question == "" {
		return nil, services.NewValidationError("question", "cannot be empty")
	}
	optJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	ctxJSON, err := json.Marshal(reqContext)
	if err != nil {
		return nil, fmt.Errorf("marshal context: %w", err)
	}

	var id int64
	err = s.g.Tx(ctx, func(tx *store.Tx) error {
		var txErr error
		id, txErr = tx.InsertReturningID(ctx, `INSERT INTO human_requests
			(automation, request_type, question, options, status, context, created_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6::jsonb, NOW()) RETURNING id`,
			automation, requestType, question, string(optJSON), models.RequestPending, string(ctxJSON))
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("created human request", "id", id, "automation", automation, "type", requestType)
	return s.Get(ctx, id)
}

// Get loads one request.
func (s *Service) Get(ctx context.Context, id int64) (*models.HumanRequest, error) {
	row, err := s.g.QueryOne(ctx,
		"SELECT "+requestColumns+" FROM human_requests WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return scanRequest(row), nil
}

// Pending returns all open requests, oldest first.
func (s *Service) Pending(ctx context.Context) ([]*models.HumanRequest, error) {
	rows, err := s.g.Query(ctx,
		"SELECT "+requestColumns+" FROM human_requests WHERE status = $1 ORDER BY created_at",
		models.RequestPending)
	if err != nil {
		return nil, err
	}
	out := make([]*models.HumanRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanRequest(row))
	}
	return out, nil
}

// Respond records a human answer. Only pending requests accept one; a second
// response returns ErrConflict.
func (s *Service) Respond(ctx context.Context, id int64, status, response string) (*models.HumanRequest, error) {
	if !responseStatuses[status] {
		return nil, services.NewValidationError("status",
			fmt.Sprintf("%q is not a valid response status", status))
	}

	affected, err := s.g.Exec(ctx, `UPDATE human_requests
		SET status = $2, response = $3, answered_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, status, response, models.RequestPending)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: request %d already resolved", services.ErrConflict, id)
	}

	s.logger.Info("human request resolved", "id", id, "status", status)
	return s.Get(ctx, id)
}

// Cancel withdraws a pending request.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	affected, err := s.g.Exec(ctx, `UPDATE human_requests
		SET status = $2, answered_at = NOW() WHERE id = $1 AND status = $3`,
		id, models.RequestCancelled, models.RequestPending)
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: request %d already resolved", services.ErrConflict, id)
	}
	return nil
}

// Wait polls every pollInterval until the request resolves or the timeout
// passes, in which case the request is marked timed out and returned as such.
// Zero durations fall back to the defaults.
func (s *Service) Wait(ctx context.Context, id int64, timeout, pollInterval time.Duration) (*models.HumanRequest, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		req, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Terminal() {
			return req, nil
		}
		if time.Now().After(deadline) {
			_, err := s.g.Exec(ctx, `UPDATE human_requests
				SET status = $2, answered_at = NOW() WHERE id = $1 AND status = $3`,
				id, models.RequestTimeout, models.RequestPending)
			if err != nil {
				return nil, err
			}
			s.logger.Warn("human request timed out", "id", id)
			return s.Get(ctx, id)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// DeleteResolvedOlderThan removes terminal requests past the retention window.
func (s *Service) DeleteResolvedOlderThan(ctx context.Context, days int) (int64, error) {
	return s.g.Exec(ctx, `DELETE FROM human_requests
		WHERE status <> $1 AND created_at < NOW() - make_interval(days => $2)`,
		models.RequestPending, days)
}

func scanRequest(row store.Row) *models.HumanRequest {
	req := &models.HumanRequest{
		ID:          rowInt(row["id"]),
		Automation:  rowString(row["automation"]),
		RequestType: rowString(row["request_type"]),
		Question:    rowString(row["question"]),
		Status:      rowString(row["status"]),
		Response:    rowString(row["response"]),
	}
	if raw := rowString(row["options"]); raw != "" {
		_ = json.Unmarshal([]byte(raw), &req.Options)
	}
	if raw := rowString(row["context"]); raw != "" {
		_ = json.Unmarshal([]byte(raw), &req.Context)
	}
	if t, ok := row["created_at"].(time.Time); ok {
		req.CreatedAt = t
	}
	if t, ok := row["answered_at"].(time.Time); ok {
		req.AnsweredAt = &t
	}
	return req
}

func rowString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func rowInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
