package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"OPENAI_API_KEY", "HALLUC_LLM_APIKEY", "MODEL_NAME", "HALLUC_LLM_MODEL", "TEMPERATURE", "MAX_TOKENS", "HALLUC_TLS", "HALLUC_SERVER_TLS"} {
		t.Setenv(name, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load(writeYAML(t, "logging:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, 5, cfg.LLM.BreakerThreshold)
	assert.Equal(t, "sqlitevec", cfg.Vector.Backend)
	assert.Equal(t, "cybersecurity_kb", cfg.Vector.Collection)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 3, cfg.Runner.TopK)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Server.TLS)
	assert.Equal(t, "warn", cfg.Logging.Level)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestLoad_FileOverrides(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load(writeYAML(t, `
llm:
  apiKey: sk-file
  model: gpt-4o-mini
  temperature: 0
  baseURL: http://localhost:11434/v1
embedding:
  provider: hash
  dimensions: 128
runner:
  topK: 5
  autoFlagErrors: true
`))
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Zero(t, cfg.LLM.Temperature)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 128, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.Runner.TopK)
	assert.True(t, cfg.Runner.AutoFlagErrors)

	// Embedding credentials fall back to the chat endpoint's.
	assert.Equal(t, "sk-file", cfg.Embedding.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedding.BaseURL)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvAliases(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("MODEL_NAME", "gpt-4")
	t.Setenv("MAX_TOKENS", "256")

	cfg, err := Load(writeYAML(t, "llm:\n  model: ignored\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 256, cfg.LLM.MaxTokens)
}

func TestLoad_TLSFromEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("HALLUC_TLS", "true")

	cfg, err := Load(writeYAML(t, "server:\n  port: 8443\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Server.TLS)
	assert.Equal(t, 8443, cfg.Server.Port)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:       LLMConfig{APIKey: "sk-test", Temperature: 0.7, MaxTokens: 500},
			Embedding: EmbeddingConfig{Provider: "openai", Dimensions: 1536},
			Vector:    VectorConfig{Backend: "sqlitevec"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"blank api key", func(c *Config) { c.LLM.APIKey = "  " }},
		{"temperature too high", func(c *Config) { c.LLM.Temperature = 2.5 }},
		{"negative temperature", func(c *Config) { c.LLM.Temperature = -0.1 }},
		{"zero max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }},
		{"unknown backend", func(c *Config) { c.Vector.Backend = "faiss" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
