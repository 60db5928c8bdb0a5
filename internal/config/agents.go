package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	FormatOpenAI = "openai"
	FormatGemini = "gemini"
)

// LegacyAgent mirrors one entry of the original agents.json file.
type LegacyAgent struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
	URL    string `json:"url"`
}

// ImportLegacyAgents reads an agents.json file (name -> {api_key, model, url}) into agent configs.
func ImportLegacyAgents(path string) (map[string]AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legacy agents: %w", err)
	}

	var legacy map[string]LegacyAgent
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse legacy agents %s: %w", path, err)
	}

	agents := make(map[string]AgentConfig, len(legacy))
	for name, entry := range legacy {
		cfg := AgentConfig{
			URL:    strings.TrimSpace(entry.URL),
			Model:  strings.TrimSpace(entry.Model),
			APIKey: entry.APIKey,
		}
		if name == FormatGemini || strings.Contains(cfg.URL, ":generateContent") {
			cfg.Format = FormatGemini
		}
		if err := validateAgent(name, cfg); err != nil {
			return nil, err
		}
		agents[name] = cfg
	}

	return agents, nil
}

// ResolveSecret returns the agent secret, preferring the environment variable when it is set.
func (a AgentConfig) ResolveSecret() string {
	if a.APIKeyEnv != "" {
		if v := strings.TrimSpace(os.Getenv(a.APIKeyEnv)); v != "" {
			return v
		}
	}
	return a.APIKey
}

func validateAgent(name string, a AgentConfig) error {
	if strings.TrimSpace(name) == "" {
		return &AgentConfigError{Name: name, Reason: "agent name is required"}
	}

	if a.URL == "" {
		return &AgentConfigError{Name: name, Reason: "url is required"}
	}

	parsed, err := url.Parse(a.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &AgentConfigError{Name: name, Reason: fmt.Sprintf("url %q is not absolute", a.URL)}
	}

	switch a.Format {
	case "", FormatOpenAI, FormatGemini:
	default:
		return &AgentConfigError{Name: name, Reason: fmt.Sprintf("format %q is not supported", a.Format)}
	}

	if a.Temperature != nil && (*a.Temperature < 0 || *a.Temperature > 2) {
		return &AgentConfigError{Name: name, Reason: fmt.Sprintf("temperature %.2f is out of range [0.0, 2.0]", *a.Temperature)}
	}

	if a.MaxTokens < 0 || a.TimeoutSeconds < 0 || a.RequestsPerMinute < 0 || a.Concurrency < 0 {
		return &AgentConfigError{Name: name, Reason: "numeric limits must not be negative"}
	}

	return nil
}

type AgentConfigError struct {
	Name   string
	Reason string
}

func (e *AgentConfigError) Error() string {
	return "invalid config for agent " + e.Name + ": " + e.Reason
}
