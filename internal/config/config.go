// Package config loads and validates the wpcv TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultTokenLimit      = 8000
	DefaultResponseReserve = 1000
	DefaultTimeoutSeconds  = 60
	DefaultMaxAttempts     = 3
	DefaultAgentName       = "deepseek"
)

// AgentConfig is the on-disk description of one agent endpoint.
type AgentConfig struct {
	URL               string   `toml:"url"`
	Model             string   `toml:"model"`
	APIKey            string   `toml:"api_key"`
	APIKeyEnv         string   `toml:"api_key_env,omitempty"`
	Format            string   `toml:"format,omitempty"`
	SystemPrompt      string   `toml:"system_prompt,omitempty"`
	MaxTokens         int      `toml:"max_tokens,omitempty"`
	Temperature       *float64 `toml:"temperature,omitempty"`
	TimeoutSeconds    int      `toml:"timeout_seconds,omitempty"`
	RequestsPerMinute int      `toml:"requests_per_minute,omitempty"`
	Concurrency       int      `toml:"concurrency,omitempty"`
}

type UserConfig struct {
	Name     string `toml:"name"`
	Revision string `toml:"revision"`
}

type PatchConfig struct {
	Enabled      bool     `toml:"enabled"`
	Allow        []string `toml:"allow"`
	MaxSizeBytes int64    `toml:"max_size_bytes"`
	CreateDirs   bool     `toml:"create_dirs"`
}

type JournalConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type ValidationConfig struct {
	Expectations string `toml:"expectations"`
	AfterPatch   bool   `toml:"after_patch"`
}

type DoctorConfig struct {
	Commands []string `toml:"commands"`
}

type DebugConfig struct {
	LogLevel     string `toml:"log_level"`
	LogRequests  bool   `toml:"log_requests"`
	LogResponses bool   `toml:"log_responses"`
	LogDirectory string `toml:"log_directory"`
}

type Config struct {
	Bind                  string                 `toml:"bind"`
	DataDir               string                 `toml:"data_dir"`
	Workspace             string                 `toml:"workspace"`
	DefaultAgent          string                 `toml:"default_agent"`
	TokenLimit            int                    `toml:"token_limit"`
	ResponseReserve       int                    `toml:"response_reserve"`
	RequestTimeoutSeconds int                    `toml:"request_timeout_seconds"`
	MaxAttempts           int                    `toml:"max_attempts"`
	SystemPrompt          string                 `toml:"system_prompt"`
	User                  UserConfig             `toml:"user"`
	Patch                 PatchConfig            `toml:"patch"`
	Journal               JournalConfig          `toml:"journal"`
	Validation            ValidationConfig       `toml:"validation"`
	Doctor                DoctorConfig           `toml:"doctor"`
	Debug                 DebugConfig            `toml:"debug"`
	Agents                map[string]AgentConfig `toml:"agents"`
}

func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Bind:                  "127.0.0.1:50061",
		DataDir:               dataDir,
		Workspace:             "",
		DefaultAgent:          DefaultAgentName,
		TokenLimit:            DefaultTokenLimit,
		ResponseReserve:       DefaultResponseReserve,
		RequestTimeoutSeconds: DefaultTimeoutSeconds,
		MaxAttempts:           DefaultMaxAttempts,
		User: UserConfig{
			Name:     "UnknownUser",
			Revision: "Unversioned",
		},
		Patch: PatchConfig{
			Enabled:      true,
			Allow:        []string{"**"},
			MaxSizeBytes: 10 * 1024 * 1024,
		},
		Journal: JournalConfig{
			Driver: "jsonl",
		},
		Validation: ValidationConfig{
			Expectations: filepath.Join("docs", "expectations.md"),
		},
		Doctor: DoctorConfig{
			Commands: []string{"git"},
		},
		Debug: DebugConfig{
			LogLevel:     "info",
			LogDirectory: filepath.Join(dataDir, "debug"),
		},
		Agents: DefaultAgents(),
	}
}

// DefaultAgents returns the built-in agent templates with empty credentials.
func DefaultAgents() map[string]AgentConfig {
	return map[string]AgentConfig{
		"openai": {
			URL:       "https://api.openai.com/v1/chat/completions",
			Model:     "gpt-4",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		"deepseek": {
			URL:       "https://api.deepseek.com/chat/completions",
			Model:     "deepseek-chat",
			APIKeyEnv: "DEEPSEEK_API_KEY",
		},
		"gemini": {
			URL:       "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent",
			Model:     "gemini-pro",
			APIKeyEnv: "GEMINI_API_KEY",
			Format:    "gemini",
		},
		"grok": {
			URL:       "https://api.x.ai/v1/chat/completions",
			Model:     "grok-1",
			APIKeyEnv: "XAI_API_KEY",
		},
		"local": {
			URL:    "http://localhost:1234/v1/chat/completions",
			Model:  "local-model",
			APIKey: "NA",
		},
	}
}

// Path returns the default config file location inside the data directory.
func Path() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := Save(path, config); err != nil {
				return config, err
			}
			return config, nil
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	// Agents from the file replace the templates instead of merging with them.
	config.Agents = nil
	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, fmt.Errorf("parse %s: %w", path, err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

func Save(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	configData, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, configData, 0o600)
}

func (c *Config) normalize() {
	c.DataDir = expandPath(strings.TrimSpace(c.DataDir))
	c.Workspace = expandPath(strings.TrimSpace(c.Workspace))
	c.Journal.Path = expandPath(c.Journal.Path)
	c.Debug.LogDirectory = expandPath(c.Debug.LogDirectory)
	c.Bind = strings.TrimSpace(c.Bind)

	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.TokenLimit == 0 {
		c.TokenLimit = DefaultTokenLimit
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "jsonl"
	}
	if c.Debug.LogDirectory == "" {
		c.Debug.LogDirectory = filepath.Join(c.DataDir, "debug")
	}
	if c.Agents == nil {
		c.Agents = map[string]AgentConfig{}
	}
}

func (c Config) Validate() error {
	if c.TokenLimit <= 0 {
		return errors.New("token_limit must be greater than 0")
	}

	if c.ResponseReserve < 0 {
		return errors.New("response_reserve must not be negative")
	}

	if c.ResponseReserve >= c.TokenLimit {
		return fmt.Errorf("response_reserve (%d) must be smaller than token_limit (%d)", c.ResponseReserve, c.TokenLimit)
	}

	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}

	switch c.Journal.Driver {
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("journal.driver %q is not supported (use jsonl or sqlite)", c.Journal.Driver)
	}

	for name, agent := range c.Agents {
		if err := validateAgent(name, agent); err != nil {
			return err
		}
	}

	return nil
}

// JournalPath resolves the journal location for the configured driver.
func (c Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	if c.Journal.Driver == "sqlite" {
		return filepath.Join(c.DataDir, "conversation.db")
	}
	return filepath.Join(c.DataDir, "conversation.jsonl")
}

func (c Config) ConversationsDir() string {
	return filepath.Join(c.DataDir, "conversations")
}

func (c Config) RevisionsDir() string {
	return filepath.Join(c.DataDir, "revisions")
}

func (c Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// WorkspaceDir is the root that file modifications are resolved against.
func (c Config) WorkspaceDir() string {
	if c.Workspace != "" {
		return c.Workspace
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".wpcv"
	}

	return filepath.Join(homeDir, ".wpcv")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
