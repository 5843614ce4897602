package models

import "time"

// HumanRequest statuses. A request may leave "pending" exactly once.
const (
	RequestPending   = "pending"
	RequestApproved  = "approved"
	RequestRejected  = "rejected"
	RequestAnswered  = "answered"
	RequestTimeout   = "timeout"
	RequestCancelled = "cancelled"
)

// HumanRequest types.
const (
	RequestTypeApproval = "approval"
	RequestTypeChoice   = "choice"
	RequestTypeInput    = "input"
)

// HumanRequest is a pending question to a human, created when the pipeline
// cannot act without clarification or approval.
type HumanRequest struct {
	ID          int64          `json:"id"`
	Automation  string         `json:"automation"`
	RequestType string         `json:"request_type"`
	Question    string         `json:"question"`
	Options     []string       `json:"options,omitempty"`
	Status      string         `json:"status"`
	Response    string         `json:"response,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	AnsweredAt  *time.Time     `json:"answered_at,omitempty"`
}

// Terminal reports whether the request can no longer change.
func (r *HumanRequest) Terminal() bool {
	return r.Status != RequestPending
}
