// Package config provides configuration management for the orchestration runtime.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the runtime.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Events       EventsConfig       `mapstructure:"events"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	PTY          PTYConfig          `mapstructure:"pty"`
	Prompt       PromptConfig       `mapstructure:"prompt"`
	GitWatcher   GitWatcherConfig   `mapstructure:"gitWatcher"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Secrets      SecretsConfig      `mapstructure:"secrets"`
	Worktree     WorktreeConfig     `mapstructure:"worktree"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the
// in-memory event bus instead.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClusterID     string `mapstructure:"clusterId"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// EventsConfig holds event bus namespace configuration.
type EventsConfig struct {
	// Namespace isolates queue-group subscribers across deployments/instances.
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds the orchestrator's chat-completion client configuration.
type LLMConfig struct {
	BaseURL            string `mapstructure:"baseUrl"`
	Model              string `mapstructure:"model"`
	APIKey             string `mapstructure:"apiKey"`
	RequestTimeout     int    `mapstructure:"requestTimeoutSeconds"`
	MaxRetries         int    `mapstructure:"maxRetries"`
	RequestsPerMinute  int    `mapstructure:"requestsPerMinute"`
}

// OrchestratorConfig holds orchestrator agent event-loop configuration.
type OrchestratorConfig struct {
	PollInterval          int `mapstructure:"pollIntervalSeconds"`
	MaxHistoryMessages     int `mapstructure:"maxHistoryMessages"`
	ReconcileOnStartup     bool `mapstructure:"reconcileOnStartup"`
}

// PTYConfig holds PTY process manager configuration.
type PTYConfig struct {
	DefaultCols   int `mapstructure:"defaultCols"`
	DefaultRows   int `mapstructure:"defaultRows"`
	ReplayBufferBytes int `mapstructure:"replayBufferBytes"`
}

// PromptConfig holds prompt-watcher debounce/classification configuration.
type PromptConfig struct {
	IdleDebounceMillis int `mapstructure:"idleDebounceMillis"`
	TailWindowBytes    int `mapstructure:"tailWindowBytes"`
}

// GitWatcherConfig holds the git commit watcher's polling configuration.
type GitWatcherConfig struct {
	PollIntervalSeconds int `mapstructure:"pollIntervalSeconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// SecretsConfig holds master-key configuration for at-rest encryption.
type SecretsConfig struct {
	MasterKeyPath string `mapstructure:"masterKeyPath"`
}

// WorktreeConfig holds git worktree configuration for concurrent terminal execution.
type WorktreeConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BasePath      string `mapstructure:"basePath"`
	DefaultBranch string `mapstructure:"defaultBranch"`
	BranchPrefix  string `mapstructure:"branchPrefix"`
	MaxPerRepo    int    `mapstructure:"maxPerRepo"`
}

// RequestTimeoutDuration returns the LLM request timeout as a time.Duration.
func (l *LLMConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(l.RequestTimeout) * time.Second
}

// PollIntervalDuration returns the orchestrator poll interval as a time.Duration.
func (o *OrchestratorConfig) PollIntervalDuration() time.Duration {
	return time.Duration(o.PollInterval) * time.Second
}

// PollIntervalDuration returns the git watcher poll interval as a time.Duration.
func (g *GitWatcherConfig) PollIntervalDuration() time.Duration {
	return time.Duration(g.PollIntervalSeconds) * time.Second
}

// IdleDebounceDuration returns the prompt watcher's idle debounce as a time.Duration.
func (p *PromptConfig) IdleDebounceDuration() time.Duration {
	return time.Duration(p.IdleDebounceMillis) * time.Millisecond
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("GITCORTEX_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./gitcortex.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gitcortex")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "gitcortex")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clusterId", "gitcortex-cluster")
	v.SetDefault("nats.clientId", "gitcortex-client")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("events.namespace", "")

	v.SetDefault("llm.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.requestTimeoutSeconds", 60)
	v.SetDefault("llm.maxRetries", 5)
	v.SetDefault("llm.requestsPerMinute", 60)

	v.SetDefault("orchestrator.pollIntervalSeconds", 2)
	v.SetDefault("orchestrator.maxHistoryMessages", 200)
	v.SetDefault("orchestrator.reconcileOnStartup", true)

	v.SetDefault("pty.defaultCols", 120)
	v.SetDefault("pty.defaultRows", 40)
	v.SetDefault("pty.replayBufferBytes", 65536)

	v.SetDefault("prompt.idleDebounceMillis", 750)
	v.SetDefault("prompt.tailWindowBytes", 4096)

	v.SetDefault("gitWatcher.pollIntervalSeconds", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("secrets.masterKeyPath", "~/.gitcortex/master.key")

	v.SetDefault("worktree.enabled", true)
	v.SetDefault("worktree.basePath", "~/.gitcortex/worktrees")
	v.SetDefault("worktree.defaultBranch", "main")
	v.SetDefault("worktree.branchPrefix", "gitcortex/")
	v.SetDefault("worktree.maxPerRepo", 16)
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix GITCORTEX_ with snake_case naming.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GITCORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not fold camelCase config keys into SNAKE_CASE env
	// names, so bind the ones that diverge explicitly.
	_ = v.BindEnv("llm.apiKey", "GITCORTEX_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.baseUrl", "GITCORTEX_LLM_BASE_URL")
	_ = v.BindEnv("logging.level", "GITCORTEX_LOG_LEVEL")
	_ = v.BindEnv("events.namespace", "GITCORTEX_EVENTS_NAMESPACE")
	_ = v.BindEnv("secrets.masterKeyPath", "GITCORTEX_MASTER_KEY_PATH")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gitcortex/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Database.Driver == "postgres" {
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for postgres driver")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for postgres driver")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.Orchestrator.PollInterval <= 0 {
		errs = append(errs, "orchestrator.pollIntervalSeconds must be positive")
	}
	if cfg.GitWatcher.PollIntervalSeconds <= 0 {
		errs = append(errs, "gitWatcher.pollIntervalSeconds must be positive")
	}
	if cfg.LLM.MaxRetries < 0 {
		errs = append(errs, "llm.maxRetries must not be negative")
	}
	if cfg.LLM.RequestsPerMinute <= 0 {
		errs = append(errs, "llm.requestsPerMinute must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
