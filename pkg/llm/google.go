package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ProviderGoogle is the provider name for Google Gemini models.
const ProviderGoogle = "google"

const googleDefaultModel = "gemini-2.5-flash"

var googleModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
}

// GoogleClient talks to the Gemini API.
type GoogleClient struct {
	client *genai.Client
}

// NewGoogleClient creates a client with the given API key.
func NewGoogleClient(ctx context.Context, apiKey string) (*GoogleClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GoogleClient{client: client}, nil
}

// Provider returns the provider name.
func (c *GoogleClient) Provider() string { return ProviderGoogle }

// DefaultModel returns the model used when the request leaves Model empty.
func (c *GoogleClient) DefaultModel() string { return googleDefaultModel }

// Models returns the known model identifiers.
func (c *GoogleClient) Models() []string { return googleModels }

func (c *GoogleClient) buildRequest(req Request) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = googleDefaultModel
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*req.TopK))
	}
	if len(req.StopSequences) > 0 {
		cfg.StopSequences = req.StopSequences
	}
	return model, contents, cfg
}

// Chat performs one blocking generation.
func (c *GoogleClient) Chat(ctx context.Context, req Request) (*Response, error) {
	model, contents, cfg := c.buildRequest(req)
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}
	out := &Response{
		Content:  resp.Text(),
		Model:    model,
		Provider: ProviderGoogle,
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	return out, nil
}

// ChatStream streams the generation.
func (c *GoogleClient) ChatStream(ctx context.Context, req Request) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 32)
	errCh := make(chan error, 1)

	model, contents, cfg := c.buildRequest(req)

	go func() {
		defer close(chunks)
		defer close(errCh)

		var full strings.Builder
		final := &Response{Model: model, Provider: ProviderGoogle}

		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				errCh <- fmt.Errorf("gemini stream: %w", err)
				return
			}
			text := resp.Text()
			if text != "" {
				full.WriteString(text)
				select {
				case chunks <- StreamChunk{TextDelta: text}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if resp.UsageMetadata != nil {
				final.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
				final.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
				final.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
			}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				final.StopReason = string(resp.Candidates[0].FinishReason)
			}
		}

		final.Content = full.String()
		chunks <- StreamChunk{Done: true, Response: final}
	}()

	return chunks, errCh
}
