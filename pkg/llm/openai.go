package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ProviderOpenAI is the provider name for OpenAI chat models.
const ProviderOpenAI = "openai"

const openaiDefaultModel = "gpt-4o"

var openaiModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
}

// OpenAIClient talks to the OpenAI Chat Completions API.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a client with the given API key.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Provider returns the provider name.
func (c *OpenAIClient) Provider() string { return ProviderOpenAI }

// DefaultModel returns the model used when the request leaves Model empty.
func (c *OpenAIClient) DefaultModel() string { return openaiDefaultModel }

// Models returns the known model identifiers.
func (c *OpenAIClient) Models() []string { return openaiModels }

func (c *OpenAIClient) buildParams(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = openaiDefaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.StopSequences}
	}
	return params
}

// Chat performs one blocking chat completion.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*Response, error) {
	params := c.buildParams(req)
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	out := &Response{
		Model:        resp.Model,
		Provider:     ProviderOpenAI,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.StopReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

// ChatStream streams the completion, accumulating the final Response.
func (c *OpenAIClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 32)
	errCh := make(chan error, 1)

	params := c.buildParams(req)
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	go func() {
		defer close(chunks)
		defer close(errCh)
		defer stream.Close()

		var acc openai.ChatCompletionAccumulator
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- StreamChunk{TextDelta: delta}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("openai stream: %w", err)
			return
		}

		out := &Response{
			Model:        acc.Model,
			Provider:     ProviderOpenAI,
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
			TotalTokens:  int(acc.Usage.TotalTokens),
		}
		if len(acc.Choices) > 0 {
			out.Content = acc.Choices[0].Message.Content
			out.StopReason = string(acc.Choices[0].FinishReason)
		}
		chunks <- StreamChunk{Done: true, Response: out}
	}()

	return chunks, errCh
}
