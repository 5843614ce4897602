// Package agent runs DB-configured LLM agents: prompt templates, retries,
// provider fallback, and output parsing all come from agent_configs rows, so
// behaviour changes are data edits rather than deploys.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/secondbrainhq/secondbrain/pkg/llm"
	"github.com/secondbrainhq/secondbrain/pkg/models"
	"github.com/secondbrainhq/secondbrain/pkg/parser"
	"github.com/secondbrainhq/secondbrain/pkg/services"
	"github.com/secondbrainhq/secondbrain/pkg/store"
)

// Error codes surfaced to callers and the inbox log.
const (
	CodeAgentError = "AGENT_ERROR"
	CodeParseError = "PARSE_ERROR"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 4096
	retryBaseDelay   = time.Second
)

// Error is an agent execution failure with enough context to log and report.
type Error struct {
	AgentName string
	Code      string
	Raw       string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s: %s: %v", e.AgentName, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Details returns the error in the shape stored in audit logs.
func (e *Error) Details() map[string]any {
	return map[string]any{
		"error":        e.Err.Error(),
		"error_code":   e.Code,
		"raw_response": e.Raw,
		"agent_name":   e.AgentName,
	}
}

// Runner executes named agents against their stored configuration.
type Runner struct {
	configs *store.AgentConfigs
	factory *llm.Factory
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*models.AgentConfig
}

// NewRunner creates an agent runner.
func NewRunner(configs *store.AgentConfigs, factory *llm.Factory, logger *slog.Logger) *Runner {
	return &Runner{
		configs: configs,
		factory: factory,
		logger:  logger.With("component", "agent"),
		cache:   make(map[string]*models.AgentConfig),
	}
}

// Reload drops cached configurations so edited rows take effect.
func (r *Runner) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*models.AgentConfig)
}

// Config returns the (cached) configuration of a named agent.
func (r *Runner) Config(ctx context.Context, agentName string) (*models.AgentConfig, error) {
	r.mu.RLock()
	cfg, ok := r.cache[agentName]
	r.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	row, err := r.configs.Load(ctx, agentName)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active config for agent %q", services.ErrConfig, agentName)
		}
		return nil, err
	}
	cfg = scanAgentConfig(row)

	r.mu.Lock()
	r.cache[agentName] = cfg
	r.mu.Unlock()
	return cfg, nil
}

// Execute renders the agent's prompt with vars, calls the model with retries
// and fallback, and returns the parsed JSON object from the response.
func (r *Runner) Execute(ctx context.Context, agentName string, vars map[string]any) (map[string]any, error) {
	cfg, err := r.Config(ctx, agentName)
	if err != nil {
		return nil, &Error{AgentName: agentName, Code: CodeAgentError, Err: err}
	}

	req := llm.Request{
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: RenderTemplate(cfg.UserPromptTemplate, vars)},
		},
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	resp, execErr := r.callWithRetry(ctx, cfg, req, timeout)
	if execErr != nil {
		r.track(agentName, true)
		return nil, execErr
	}

	obj, err := parser.ExtractObject(resp.Content)
	if err != nil {
		r.track(agentName, true)
		return nil, &Error{AgentName: agentName, Code: CodeParseError, Raw: resp.Content, Err: err}
	}
	if schema := schemaFields(cfg.OutputSchema); schema != nil {
		obj, err = parser.Coerce(obj, schema)
		if err != nil {
			r.track(agentName, true)
			return nil, &Error{AgentName: agentName, Code: CodeParseError, Raw: resp.Content, Err: err}
		}
	}

	r.track(agentName, false)
	return obj, nil
}

func (r *Runner) callWithRetry(ctx context.Context, cfg *models.AgentConfig, req llm.Request, timeout time.Duration) (*llm.Response, *Error) {
	attempts := cfg.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := r.callOnce(ctx, cfg.Provider, req, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		r.logger.Warn("agent call failed",
			"agent", cfg.AgentName, "provider", cfg.Provider,
			"attempt", attempt, "error", err)
		if attempt < attempts {
			select {
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, &Error{AgentName: cfg.AgentName, Code: CodeAgentError, Err: ctx.Err()}
			}
		}
	}

	if cfg.FallbackProvider != "" {
		fbReq := req
		fbReq.Model = cfg.FallbackModel
		r.logger.Info("trying fallback provider",
			"agent", cfg.AgentName, "provider", cfg.FallbackProvider, "model", cfg.FallbackModel)
		resp, err := r.callOnce(ctx, cfg.FallbackProvider, fbReq, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = fmt.Errorf("primary: %v; fallback: %w", lastErr, err)
	}

	return nil, &Error{AgentName: cfg.AgentName, Code: CodeAgentError, Err: lastErr}
}

func (r *Runner) callOnce(ctx context.Context, provider string, req llm.Request, timeout time.Duration) (*llm.Response, error) {
	client, err := r.factory.NewClient(ctx, provider, "")
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Chat(callCtx, req)
}

// track updates usage counters; tracking failures are logged, never surfaced.
func (r *Runner) track(agentName string, failed bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.configs.Track(ctx, agentName, failed); err != nil {
		r.logger.Warn("agent tracking failed", "agent", agentName, "error", err)
	}
}

// schemaFields parses the stored output schema into coercion fields. The
// schema is {"field": {"type": "...", "required": bool, "default": ...}}.
func schemaFields(raw string) map[string]parser.Field {
	if raw == "" {
		return nil
	}
	var spec map[string]struct {
		Type     string `json:"type"`
		Required bool   `json:"required"`
		Default  any    `json:"default"`
	}
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil
	}
	fields := make(map[string]parser.Field, len(spec))
	for name, f := range spec {
		fields[name] = parser.Field{Type: f.Type, Required: f.Required, Default: f.Default}
	}
	return fields
}

func scanAgentConfig(row store.Row) *models.AgentConfig {
	cfg := &models.AgentConfig{
		AgentName:          rowString(row["agent_name"]),
		Provider:           rowString(row["provider"]),
		Model:              rowString(row["model"]),
		SystemPrompt:       rowString(row["system_prompt"]),
		UserPromptTemplate: rowString(row["user_prompt_template"]),
		InputSchema:        rowString(row["input_schema"]),
		OutputSchema:       rowString(row["output_schema"]),
		RetryCount:         int(rowInt(row["retry_count"])),
		TimeoutSeconds:     int(rowInt(row["timeout_seconds"])),
		MaxTokens:          int(rowInt(row["max_tokens"])),
		FallbackProvider:   rowString(row["fallback_provider"]),
		FallbackModel:      rowString(row["fallback_model"]),
		IsActive:           row["is_active"] == true,
		TotalCalls:         rowInt(row["total_calls"]),
		ErrorCount:         rowInt(row["error_count"]),
	}
	cfg.ID = rowInt(row["id"])
	if f, ok := rowFloat(row["temperature"]); ok {
		cfg.Temperature = &f
	}
	return cfg
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

func rowFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
