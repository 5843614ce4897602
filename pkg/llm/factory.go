package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

// KeyStore resolves provider API keys from persistent configuration.
// It returns services.ErrNotFound when no key is stored for the provider.
type KeyStore interface {
	APIKey(ctx context.Context, provider string) (string, error)
}

// envKeys maps providers to their conventional environment variables.
var envKeys = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGoogle:    "GOOGLE_API_KEY",
}

// Factory builds provider clients, resolving API keys in order: explicit
// argument, key store, environment.
type Factory struct {
	keys KeyStore
}

// NewFactory creates a factory. keys may be nil, in which case only explicit
// and environment keys resolve.
func NewFactory(keys KeyStore) *Factory {
	return &Factory{keys: keys}
}

// Providers returns the supported provider names.
func (f *Factory) Providers() []string {
	return []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle}
}

// NewClient creates a client for the provider. apiKey may be empty to use the
// configured key.
func (f *Factory) NewClient(ctx context.Context, provider, apiKey string) (Client, error) {
	key, err := f.resolveKey(ctx, provider, apiKey)
	if err != nil {
		return nil, err
	}
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(key), nil
	case ProviderOpenAI:
		return NewOpenAIClient(key), nil
	case ProviderGoogle:
		return NewGoogleClient(ctx, key)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", services.ErrConfig, provider)
	}
}

func (f *Factory) resolveKey(ctx context.Context, provider, explicit string) (string, error) {
	envVar, known := envKeys[provider]
	if !known {
		return "", fmt.Errorf("%w: unknown llm provider %q", services.ErrConfig, provider)
	}
	if explicit != "" {
		return explicit, nil
	}
	if f.keys != nil {
		key, err := f.keys.APIKey(ctx, provider)
		if err == nil && key != "" {
			return key, nil
		}
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			return "", fmt.Errorf("load %s api key: %w", provider, err)
		}
	}
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: no api key for provider %q (set %s or store one)", services.ErrConfig, provider, envVar)
}
