package models

import "time"

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectOnHold    = "on_hold"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

// Task statuses.
const (
	TaskInbox   = "inbox"
	TaskNext    = "next"
	TaskWaiting = "waiting"
	TaskSomeday = "someday"
	TaskDone    = "done"
)

// Project groups tasks under a shared goal.
type Project struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Priority  int        `json:"priority"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Idea is a captured thought that may graduate into a project.
type Idea struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	OneLiner  string     `json:"one_liner,omitempty"`
	Status    string     `json:"status"`
	Priority  int        `json:"priority"`
	Tags      []string   `json:"tags,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Task is an actionable item, optionally linked to a project and a person.
type Task struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Priority  int        `json:"priority"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	ProjectID *int64     `json:"project_id,omitempty"`
	PersonID  *int64     `json:"person_id,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// CalendarEvent mirrors a VEVENT; all-day events carry date-only boundaries.
type CalendarEvent struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	AllDay      bool       `json:"all_day"`
	Recurrence  string     `json:"recurrence,omitempty"` // RRULE string
	PersonID    *int64     `json:"person_id,omitempty"`
	CalendarID  *int64     `json:"calendar_id,omitempty"`
	ICloudUID   string     `json:"icloud_uid,omitempty"`
	Etag        string     `json:"etag,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InboxLog is the audit trail of the intent pipeline. One row per processed
// input, whether or not it mutated anything.
type InboxLog struct {
	ID           int64          `json:"id"`
	CapturedText string         `json:"captured_text"`
	Intent       string         `json:"intent"`
	TargetTable  string         `json:"target_table,omitempty"`
	TargetID     *int64         `json:"target_id,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Confidence   float64        `json:"confidence"`
	NeedsReview  bool           `json:"needs_review"`
	CreatedAt    time.Time      `json:"created_at"`
}
