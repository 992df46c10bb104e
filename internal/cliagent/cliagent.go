// Package cliagent writes the on-disk configuration files that point each
// supported CLI (Claude, Codex, Gemini) at a specific base URL, API key, and
// model, so a spawned PTY process picks the right credentials on launch.
package cliagent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/subosito/gotenv"

	"github.com/huanchong-99/gitcortex/internal/atomicfile"
	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

// SwitchConfig is the credential/model triple applied to a CLI's config files.
type SwitchConfig struct {
	BaseURL string // empty means the CLI's official default endpoint
	APIKey  string
	Model   string
}

// Switcher resolves each CLI's config file path under a home directory and
// rewrites it atomically. configDir defaults to the user's home directory;
// tests override it to a temp directory.
type Switcher struct {
	configDir string
}

// NewSwitcher returns a Switcher rooted at configDir (typically os.UserHomeDir()).
func NewSwitcher(configDir string) *Switcher {
	return &Switcher{configDir: configDir}
}

// Switch rewrites cli's on-disk configuration to apply cfg. Mutations to a
// given CLI's files are not safe to run concurrently with another Switch for
// the same CLI — the caller (the terminal launcher's serial phase) must
// serialize calls itself.
func (s *Switcher) Switch(cli dbmodel.CliType, cfg SwitchConfig) error {
	switch cli {
	case dbmodel.CliClaude:
		return s.switchClaude(cfg)
	case dbmodel.CliCodex:
		return s.switchCodex(cfg)
	case dbmodel.CliGemini:
		return s.switchGemini(cfg)
	default:
		return fmt.Errorf("cliagent: unsupported cli %q", cli)
	}
}

// --- Claude: ~/.claude/settings.json ---

type claudeEnvConfig struct {
	BaseURL   string `json:"ANTHROPIC_BASE_URL,omitempty"`
	AuthToken string `json:"ANTHROPIC_AUTH_TOKEN,omitempty"`
	Model     string `json:"ANTHROPIC_MODEL,omitempty"`
}

func (s *Switcher) claudeSettingsPath() string {
	return filepath.Join(s.configDir, ".claude", "settings.json")
}

func (s *Switcher) switchClaude(cfg SwitchConfig) error {
	path := s.claudeSettingsPath()
	raw := readExistingJSON(path)

	raw["env"] = claudeEnvConfig{
		BaseURL:   cfg.BaseURL,
		AuthToken: cfg.APIKey,
		Model:     cfg.Model,
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("cliagent: marshal claude settings: %w", err)
	}
	return atomicfile.Write(path, data, 0o600)
}

// --- Codex: ~/.codex/auth.json + ~/.codex/config.toml ---

type codexAuthConfig struct {
	OpenAIAPIKey string `json:"OPENAI_API_KEY,omitempty"`
}

type codexProviderConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
}

type codexModelConfig struct {
	ModelProvider  string                         `toml:"model_provider,omitempty"`
	Model          string                         `toml:"model,omitempty"`
	ModelProviders map[string]codexProviderConfig `toml:"model_providers,omitempty"`
}

func (s *Switcher) codexAuthPath() string   { return filepath.Join(s.configDir, ".codex", "auth.json") }
func (s *Switcher) codexConfigPath() string { return filepath.Join(s.configDir, ".codex", "config.toml") }

func (s *Switcher) switchCodex(cfg SwitchConfig) error {
	authData, err := json.MarshalIndent(codexAuthConfig{OpenAIAPIKey: cfg.APIKey}, "", "  ")
	if err != nil {
		return fmt.Errorf("cliagent: marshal codex auth: %w", err)
	}
	if err := atomicfile.Write(s.codexAuthPath(), authData, 0o600); err != nil {
		return err
	}

	model := codexModelConfig{Model: cfg.Model}
	if cfg.BaseURL != "" {
		model.ModelProvider = "custom"
		model.ModelProviders = map[string]codexProviderConfig{
			"custom": {BaseURL: cfg.BaseURL},
		}
	} else {
		model.ModelProvider = "openai"
	}

	tomlData, err := toml.Marshal(model)
	if err != nil {
		return fmt.Errorf("cliagent: marshal codex config.toml: %w", err)
	}
	return atomicfile.Write(s.codexConfigPath(), tomlData, 0o600)
}

// --- Gemini: ~/.gemini/.env ---

func (s *Switcher) geminiEnvPath() string { return filepath.Join(s.configDir, ".gemini", ".env") }

func (s *Switcher) switchGemini(cfg SwitchConfig) error {
	path := s.geminiEnvPath()
	env := readExistingEnv(path)

	env["GEMINI_API_KEY"] = cfg.APIKey
	env["GEMINI_MODEL"] = cfg.Model
	if cfg.BaseURL != "" {
		env["GOOGLE_GEMINI_BASE_URL"] = cfg.BaseURL
	} else {
		delete(env, "GOOGLE_GEMINI_BASE_URL")
	}

	return atomicfile.Write(path, []byte(serializeEnvFile(env)), 0o600)
}

func readExistingJSON(path string) map[string]interface{} {
	out := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// readExistingEnv parses path with gotenv rather than a hand-rolled
// key=value split, so quoted values and "export KEY=VALUE" lines in a `.env`
// a user hand-edited are read correctly; `#` comments are not kept. A missing
// file or a parse error yields an empty map.
func readExistingEnv(path string) map[string]string {
	file, err := os.Open(path)
	if err != nil {
		return make(map[string]string)
	}
	defer file.Close()

	env, err := gotenv.StrictParse(file)
	if err != nil {
		return make(map[string]string)
	}
	return map[string]string(env)
}

// serializeEnvFile renders env as sorted `KEY=VALUE` lines, double-quoting
// only values containing a space, `=`, or `#`. gotenv.Marshal always quotes
// non-numeric values, so it isn't used here - the write side keeps this
// narrower grammar.
func serializeEnvFile(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := env[k]
		if strings.ContainsAny(v, " #=") {
			fmt.Fprintf(&b, "%s=%q\n", k, v)
		} else {
			fmt.Fprintf(&b, "%s=%s\n", k, v)
		}
	}
	return b.String()
}
