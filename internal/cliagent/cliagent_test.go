package cliagent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

func TestSwitchClaudeWritesSettingsJSON(t *testing.T) {
	dir := t.TempDir()
	s := NewSwitcher(dir)

	require.NoError(t, s.Switch(dbmodel.CliClaude, SwitchConfig{
		BaseURL: "https://api.example.com",
		APIKey:  "sk-test",
		Model:   "claude-sonnet-4",
	}))

	data, err := os.ReadFile(filepath.Join(dir, ".claude", "settings.json"))
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))
	env := parsed["env"].(map[string]interface{})
	require.Equal(t, "https://api.example.com", env["ANTHROPIC_BASE_URL"])
	require.Equal(t, "sk-test", env["ANTHROPIC_AUTH_TOKEN"])
	require.Equal(t, "claude-sonnet-4", env["ANTHROPIC_MODEL"])
}

func TestSwitchClaudePreservesUnrelatedKeys(t *testing.T) {
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, ".claude", "settings.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(settingsPath), 0o755))
	require.NoError(t, os.WriteFile(settingsPath, []byte(`{"permissions":{"allow":["Bash"]}}`), 0o600))

	s := NewSwitcher(dir)
	require.NoError(t, s.Switch(dbmodel.CliClaude, SwitchConfig{APIKey: "sk-test", Model: "m"}))

	data, err := os.ReadFile(settingsPath)
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Contains(t, parsed, "permissions")
}

func TestSwitchCodexWritesAuthAndConfig(t *testing.T) {
	dir := t.TempDir()
	s := NewSwitcher(dir)

	require.NoError(t, s.Switch(dbmodel.CliCodex, SwitchConfig{
		BaseURL: "https://api.example.com",
		APIKey:  "sk-codex",
		Model:   "gpt-5-codex",
	}))

	authData, err := os.ReadFile(filepath.Join(dir, ".codex", "auth.json"))
	require.NoError(t, err)
	var auth codexAuthConfig
	require.NoError(t, json.Unmarshal(authData, &auth))
	require.Equal(t, "sk-codex", auth.OpenAIAPIKey)

	cfgData, err := os.ReadFile(filepath.Join(dir, ".codex", "config.toml"))
	require.NoError(t, err)
	var cfg codexModelConfig
	require.NoError(t, toml.Unmarshal(cfgData, &cfg))
	require.Equal(t, "gpt-5-codex", cfg.Model)
	require.Equal(t, "custom", cfg.ModelProvider)
	require.Equal(t, "https://api.example.com", cfg.ModelProviders["custom"].BaseURL)
}

func TestSwitchCodexWithoutBaseURLUsesOpenAIProvider(t *testing.T) {
	dir := t.TempDir()
	s := NewSwitcher(dir)

	require.NoError(t, s.Switch(dbmodel.CliCodex, SwitchConfig{APIKey: "sk-codex", Model: "gpt-5-codex"}))

	cfgData, err := os.ReadFile(filepath.Join(dir, ".codex", "config.toml"))
	require.NoError(t, err)
	var cfg codexModelConfig
	require.NoError(t, toml.Unmarshal(cfgData, &cfg))
	require.Equal(t, "openai", cfg.ModelProvider)
}

func TestSwitchGeminiWritesEnvFile(t *testing.T) {
	dir := t.TempDir()
	s := NewSwitcher(dir)

	require.NoError(t, s.Switch(dbmodel.CliGemini, SwitchConfig{
		BaseURL: "https://api.example.com",
		APIKey:  "gemini-key",
		Model:   "gemini-2.5-pro",
	}))

	envPath := filepath.Join(dir, ".gemini", ".env")
	_, err := os.Stat(envPath)
	require.NoError(t, err)

	env := readExistingEnv(envPath)
	require.Equal(t, "gemini-key", env["GEMINI_API_KEY"])
	require.Equal(t, "gemini-2.5-pro", env["GEMINI_MODEL"])
	require.Equal(t, "https://api.example.com", env["GOOGLE_GEMINI_BASE_URL"])
}

func TestSwitchUnsupportedCliErrors(t *testing.T) {
	s := NewSwitcher(t.TempDir())
	err := s.Switch(dbmodel.CliType("unknown"), SwitchConfig{})
	require.Error(t, err)
}
