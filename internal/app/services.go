// Package app provides server lifecycle management and service wiring.
package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/conversation"
	"github.com/alexr72/wpcv/internal/journal"
	"github.com/alexr72/wpcv/internal/orchestrator"
	"github.com/alexr72/wpcv/internal/patch"
	"github.com/alexr72/wpcv/internal/provider"
	"github.com/alexr72/wpcv/internal/revision"
	"github.com/alexr72/wpcv/internal/validate"
)

type Services struct {
	Config       config.Config
	Agents       *agent.Registry
	Store        *conversation.Store
	Journal      journal.Journal
	Orchestrator *orchestrator.Orchestrator
}

func NewServices(cfg config.Config) (Services, error) {
	registry := agent.NewRegistry(cfg.Agents)
	store := conversation.NewFileStore(cfg.ConversationsDir())

	client := provider.NewClient(provider.Config{
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Debug:       cfg.Debug,
	})

	j, err := journal.Open(cfg)
	if err != nil {
		return Services{}, fmt.Errorf("open journal: %w", err)
	}

	opts := orchestrator.OptionsFromConfig(cfg)
	if cfg.Validation.AfterPatch {
		opts.Expectations = loadExpectations(cfg)
	}

	deps := orchestrator.Deps{
		Agents:    registry,
		Store:     store,
		Client:    client,
		Journal:   j,
		Validator: validate.DefaultPipeline(),
		Estimator: conversation.CharEstimator{},
	}

	// Leave Applier as a nil interface when disabled so the orchestrator reports ErrPatchesDisabled.
	if cfg.Patch.Enabled {
		deps.Applier = &patch.Applier{
			Root:       cfg.WorkspaceDir(),
			Allow:      cfg.Patch.Allow,
			MaxSize:    cfg.Patch.MaxSizeBytes,
			CreateDirs: cfg.Patch.CreateDirs,
			Vault:      revision.NewVault(cfg.RevisionsDir()),
		}
	}

	return Services{
		Config:       cfg,
		Agents:       registry,
		Store:        store,
		Journal:      j,
		Orchestrator: orchestrator.New(deps, opts),
	}, nil
}

func (s Services) Close() error {
	if s.Journal == nil {
		return nil
	}
	return s.Journal.Close()
}

func loadExpectations(cfg config.Config) []string {
	path := cfg.Validation.Expectations
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.WorkspaceDir(), path)
	}

	expectations, err := validate.LoadExpectations(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to load expectations", "path", path, "error", err)
		}
		return nil
	}
	return expectations
}
