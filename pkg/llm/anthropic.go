package llm

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ProviderAnthropic is the provider name for Anthropic Claude models.
const ProviderAnthropic = "anthropic"

const anthropicDefaultModel = "claude-sonnet-4-20250514"

var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-5-haiku-20241022",
}

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	messages *sdk.MessageService
}

// NewAnthropicClient creates a client with the given API key.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{messages: &ac.Messages}
}

// Provider returns the provider name.
func (c *AnthropicClient) Provider() string { return ProviderAnthropic }

// DefaultModel returns the model used when the request leaves Model empty.
func (c *AnthropicClient) DefaultModel() string { return anthropicDefaultModel }

// Models returns the known model identifiers.
func (c *AnthropicClient) Models() []string { return anthropicModels }

func (c *AnthropicClient) buildParams(req Request) sdk.MessageNewParams {
	model := req.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}
	if req.TopK != nil {
		params.TopK = sdk.Int(int64(*req.TopK))
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	if req.ThinkingBudget != nil && *req.ThinkingBudget > 0 {
		budget := int64(*req.ThinkingBudget)
		if budget < 1024 {
			budget = 1024
		}
		if budget >= int64(maxTokens) {
			budget = int64(maxTokens) - 1
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
		// The API rejects extended thinking unless temperature is 1.
		params.Temperature = sdk.Float(1.0)
	}
	return params
}

// Chat performs one blocking chat completion.
func (c *AnthropicClient) Chat(ctx context.Context, req Request) (*Response, error) {
	params := c.buildParams(req)
	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}
	return c.toResponse(msg), nil
}

func (c *AnthropicClient) toResponse(msg *sdk.Message) *Response {
	var content, thinking strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		}
	}
	return &Response{
		Content:      content.String(),
		Thinking:     thinking.String(),
		Model:        string(msg.Model),
		Provider:     ProviderAnthropic,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		StopReason:   string(msg.StopReason),
	}
}

// ChatStream streams the completion. Text deltas arrive on the chunk channel;
// the final chunk carries the accumulated Response.
func (c *AnthropicClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 32)
	errCh := make(chan error, 1)

	params := c.buildParams(req)
	stream := c.messages.NewStreaming(ctx, params)

	go func() {
		defer close(chunks)
		defer close(errCh)
		defer stream.Close()

		var msg sdk.Message
		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				errCh <- fmt.Errorf("anthropic stream accumulate: %w", err)
				return
			}
			switch ev := event.AsAny().(type) {
			case sdk.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case sdk.TextDelta:
					select {
					case chunks <- StreamChunk{TextDelta: delta.Text}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				case sdk.ThinkingDelta:
					select {
					case chunks <- StreamChunk{TextDelta: delta.Thinking, Thinking: true}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic stream: %w", err)
			return
		}
		chunks <- StreamChunk{Done: true, Response: c.toResponse(&msg)}
	}()

	return chunks, errCh
}
