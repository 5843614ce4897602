package models

import "time"

// AgentConfig is one row of the agent_configs table: everything needed to run
// a named LLM agent, including prompts, schemas, and the retry/fallback policy.
type AgentConfig struct {
	ID                 int64      `json:"id"`
	AgentName          string     `json:"agent_name"`
	Provider           string     `json:"provider"`
	Model              string     `json:"model"`
	SystemPrompt       string     `json:"system_prompt,omitempty"`
	UserPromptTemplate string     `json:"user_prompt_template"`
	InputSchema        string     `json:"input_schema,omitempty"`  // JSON-Schema-like
	OutputSchema       string     `json:"output_schema,omitempty"` // JSON-Schema-like
	RetryCount         int        `json:"retry_count"`
	TimeoutSeconds     int        `json:"timeout_seconds"`
	MaxTokens          int        `json:"max_tokens"`
	Temperature        *float64   `json:"temperature,omitempty"`
	FallbackProvider   string     `json:"fallback_provider,omitempty"`
	FallbackModel      string     `json:"fallback_model,omitempty"`
	IsActive           bool       `json:"is_active"`
	TotalCalls         int64      `json:"total_calls"`
	ErrorCount         int64      `json:"error_count"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Built-in agent names. Each maps to one agent_configs row.
const (
	AgentIntent          = "intent_agent"
	AgentStructure       = "structure_agent"
	AgentQueryClassifier = "query_classifier"
	AgentQuery           = "query_agent"
	AgentEdit            = "edit_agent"
	AgentDailyReport     = "daily_report_agent"
	AgentWeeklyReport    = "weekly_report_agent"
)
