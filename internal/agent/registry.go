// Package agent resolves named agent endpoints from configuration.
package agent

import (
	"sort"
	"strings"
	"time"

	"github.com/alexr72/wpcv/internal/config"
)

// Agent is an immutable, resolved agent endpoint.
type Agent struct {
	Name              string
	URL               string
	Model             string
	Secret            string
	Format            string
	SystemPrompt      string
	MaxTokens         int
	Temperature       *float64
	Timeout           time.Duration
	RequestsPerMinute int
	Concurrency       int
}

// Summary is the display form of an agent; it never carries the secret.
type Summary struct {
	Name      string
	Model     string
	URL       string
	Format    string
	HasSecret bool
}

type Registry struct {
	agents map[string]Agent
}

// NewRegistry builds a registry from the configured agents, resolving secrets once.
func NewRegistry(agents map[string]config.AgentConfig) *Registry {
	registry := &Registry{agents: make(map[string]Agent, len(agents))}

	for name, cfg := range agents {
		format := cfg.Format
		if format == "" {
			format = config.FormatOpenAI
		}

		registry.agents[name] = Agent{
			Name:              name,
			URL:               cfg.URL,
			Model:             cfg.Model,
			Secret:            cfg.ResolveSecret(),
			Format:            format,
			SystemPrompt:      cfg.SystemPrompt,
			MaxTokens:         cfg.MaxTokens,
			Temperature:       cfg.Temperature,
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Concurrency:       cfg.Concurrency,
		}
	}

	return registry
}

func (r *Registry) Resolve(name string) (Agent, error) {
	a, ok := r.agents[name]
	if !ok {
		return Agent{}, &AgentNotFoundError{Name: name, Available: r.Names()}
	}
	return a, nil
}

func (r *Registry) Exists(name string) bool {
	_, ok := r.agents[name]
	return ok
}

// Names returns the registered agent names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) List() []Summary {
	summaries := make([]Summary, 0, len(r.agents))
	for _, name := range r.Names() {
		a := r.agents[name]
		summaries = append(summaries, Summary{
			Name:      a.Name,
			Model:     a.Model,
			URL:       a.URL,
			Format:    a.Format,
			HasSecret: a.Secret != "",
		})
	}
	return summaries
}

type AgentNotFoundError struct {
	Name      string
	Available []string
}

func (e *AgentNotFoundError) Error() string {
	msg := "agent not found: " + e.Name
	if len(e.Available) > 0 {
		msg += "; available: " + strings.Join(e.Available, ", ")
	}
	return msg
}
