package store

import (
	"context"
)

// AgentConfigs loads and tracks rows of the agent_configs table.
type AgentConfigs struct {
	g *Gateway
}

// NewAgentConfigs creates the agent-config repository.
func NewAgentConfigs(g *Gateway) *AgentConfigs {
	return &AgentConfigs{g: g}
}

// Load returns the active configuration row for a named agent.
func (a *AgentConfigs) Load(ctx context.Context, agentName string) (Row, error) {
	return a.g.QueryOne(ctx,
		`SELECT id, agent_name, provider, model, system_prompt, user_prompt_template,
		        input_schema, output_schema, retry_count, timeout_seconds, max_tokens,
		        temperature, fallback_provider, fallback_model, is_active,
		        total_calls, error_count, last_used_at
		 FROM agent_configs
		 WHERE agent_name = $1 AND is_active = TRUE`, agentName)
}

// Track bumps the call counters after an execution. Failures here must never
// fail the agent call; callers log and move on.
func (a *AgentConfigs) Track(ctx context.Context, agentName string, failed bool) error {
	query := `UPDATE agent_configs
		SET total_calls = total_calls + 1, last_used_at = NOW(), updated_at = NOW()
		WHERE agent_name = $1`
	if failed {
		query = `UPDATE agent_configs
			SET total_calls = total_calls + 1, error_count = error_count + 1,
			    last_used_at = NOW(), updated_at = NOW()
			WHERE agent_name = $1`
	}
	_, err := a.g.Exec(ctx, query, agentName)
	return err
}
