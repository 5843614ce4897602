package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondbrainhq/secondbrain/pkg/services"
)

type stubKeys struct {
	keys map[string]string
	err  error
}

func (s *stubKeys) APIKey(_ context.Context, provider string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if key, ok := s.keys[provider]; ok {
		return key, nil
	}
	return "", services.ErrNotFound
}

func TestResolveKeyPrecedence(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(&stubKeys{keys: map[string]string{ProviderAnthropic: "stored-key"}})

	// Explicit argument wins over the store.
	key, err := f.resolveKey(ctx, ProviderAnthropic, "explicit-key")
	require.NoError(t, err)
	assert.Equal(t, "explicit-key", key)

	// Stored key wins over the environment.
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	key, err = f.resolveKey(ctx, ProviderAnthropic, "")
	require.NoError(t, err)
	assert.Equal(t, "stored-key", key)

	// ErrNotFound in the store falls through to the environment.
	t.Setenv("OPENAI_API_KEY", "")
	key, err = f.resolveKey(ctx, ProviderOpenAI, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrConfig))
	t.Setenv("OPENAI_API_KEY", "env-openai")
	key, err = f.resolveKey(ctx, ProviderOpenAI, "")
	require.NoError(t, err)
	assert.Equal(t, "env-openai", key)
}

func TestResolveKeyStoreFailure(t *testing.T) {
	f := NewFactory(&stubKeys{err: errors.New("connection refused")})
	_, err := f.resolveKey(context.Background(), ProviderAnthropic, "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, services.ErrConfig))
}

func TestResolveKeyUnknownProvider(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.resolveKey(context.Background(), "mistral", "whatever")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrConfig))
}

func TestNewClientDefaults(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	t.Setenv("ANTHROPIC_API_KEY", "k")
	client, err := f.NewClient(ctx, ProviderAnthropic, "")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, client.Provider())
	assert.NotEmpty(t, client.DefaultModel())
	assert.NotEmpty(t, client.Models())
}

func TestFactoryProviders(t *testing.T) {
	f := NewFactory(nil)
	assert.Equal(t, []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle}, f.Providers())
}
