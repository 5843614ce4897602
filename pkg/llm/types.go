// Package llm provides one chat abstraction over several model providers.
package llm

import "context"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything one chat call needs. Zero values mean "provider
// default"; pointer fields distinguish unset from zero.
type Request struct {
	Messages      []Message
	Model         string
	MaxTokens     int
	SystemPrompt  string
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string
	// ThinkingBudget enables extended thinking on providers that support it;
	// the value is the token budget.
	ThinkingBudget *int
	Metadata       map[string]string
}

// Response is the normalised chat result.
type Response struct {
	Content      string `json:"content"`
	Thinking     string `json:"thinking,omitempty"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// StreamChunk is one streaming event. Text deltas arrive with Done=false;
// the terminating chunk carries Done=true and the full Response with totals.
type StreamChunk struct {
	TextDelta string
	Thinking  bool
	Done      bool
	Response  *Response
}

// Client is a chat connection to one provider.
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error)
	Provider() string
	DefaultModel() string
	Models() []string
}
