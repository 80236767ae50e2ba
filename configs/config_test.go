package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("MODEL_NAME", "")
	t.Setenv("MODEL_FALLBACK", "")
	t.Setenv("MAX_PAGES", "")
	t.Setenv("BACKOFF_SECONDS", "")

	require.NoError(t, LoadConfig())

	assert.Equal(t, 5, MAX_PAGES)
	assert.Equal(t, 200, RENDER_DPI)
	assert.Equal(t, 3, MAX_RETRIES)
	assert.Equal(t, 3*time.Second, BACKOFF_UNIT)
	assert.Equal(t, DefaultModelFallback, Models())
}

func TestLoadConfigPinnedModel(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("MODEL_NAME", "gemini-2.5-flash")

	require.NoError(t, LoadConfig())
	assert.Equal(t, []string{"gemini-2.5-flash"}, Models())
}

func TestLoadConfigFallbackList(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("MODEL_NAME", "")
	t.Setenv("MODEL_FALLBACK", " a , ,b,c ")

	require.NoError(t, LoadConfig())
	assert.Equal(t, []string{"a", "b", "c"}, Models())
}

func TestLoadConfigRequiresKey(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "mistral")
	t.Setenv("MISTRAL_API_KEY", "")

	assert.Error(t, LoadConfig())

	t.Setenv("MODEL_PROVIDER", "openai")
	assert.Error(t, LoadConfig())
}
