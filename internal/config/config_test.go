package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-generator/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "PAPERGEN_VARIANT", "PAPERGEN_TITLE", "PAPERGEN_OUTPUT_DIR", "OLLAMA_HOST",
		"PAPERGEN_MODEL", "PAPERGEN_TIMEOUT_SECONDS", "PAPERGEN_MAX_RETRIES",
		"PAPERGEN_REQUESTS_PER_SECOND", "PAPERGEN_SERVER_PORT",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "improved", cfg.Variant)
	assert.Equal(t, models.DefaultTitle, cfg.Title)
	assert.Equal(t, "phi3:mini", cfg.Ollama.Model)
	assert.Equal(t, 45*time.Second, cfg.Timeout())
	assert.Equal(t, 2, cfg.Ollama.MaxRetries)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, models.ImprovedVariant(), cfg.VariantPreset())
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAPERGEN_VARIANT", "simple")
	t.Setenv("PAPERGEN_TIMEOUT_SECONDS", "10")
	t.Setenv("PAPERGEN_MAX_RETRIES", "not-a-number")
	t.Setenv("PAPERGEN_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, models.SimpleVariant(), cfg.VariantPreset())
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, 2, cfg.Ollama.MaxRetries)
	assert.Equal(t, 0.5, cfg.Ollama.RequestsPerSecond)
	assert.Equal(t, "gpu-box:11434", cfg.Ollama.Host)
}

func TestValidate(t *testing.T) {
	valid := Config{Variant: "simple", Ollama: OllamaConfig{TimeoutSeconds: 1}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown variant", func(c *Config) { c.Variant = "fancy" }},
		{"zero timeout", func(c *Config) { c.Ollama.TimeoutSeconds = 0 }},
		{"negative retries", func(c *Config) { c.Ollama.MaxRetries = -1 }},
		{"negative rate", func(c *Config) { c.Ollama.RequestsPerSecond = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}
