package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/validate"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the config file and scaffold an expectations file",
		Args:  cobra.NoArgs,
		RunE:  runInitCmd,
	}

	cmd.Flags().String("import-agents", "", "import agents from a legacy agents.json")
	cmd.Flags().String("user", "", "user name recorded with each exchange")
	cmd.Flags().String("revision", "", "revision tag recorded with each exchange")
	cmd.Flags().Bool("no-expectations", false, "do not scaffold an expectations file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	importPath, _ := cmd.Flags().GetString("import-agents")
	user, _ := cmd.Flags().GetString("user")
	revision, _ := cmd.Flags().GetString("revision")
	skipExpectations, _ := cmd.Flags().GetBool("no-expectations")

	cfg := a.Config
	changed := false

	if importPath != "" {
		imported, err := config.ImportLegacyAgents(importPath)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(imported))
		for name, agent := range imported {
			cfg.Agents[name] = agent
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(out, styleSuccess.Render("imported")+" "+styleName.Render(name))
		}
		changed = true
	}
	if user != "" {
		cfg.User.Name = user
		changed = true
	}
	if revision != "" {
		cfg.User.Revision = revision
		changed = true
	}

	if changed {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(a.ConfigPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}
	fmt.Fprintln(out, "config "+styleName.Render(a.ConfigPath))

	for _, dir := range []string{cfg.ConversationsDir(), cfg.RevisionsDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if skipExpectations || cfg.Validation.Expectations == "" {
		return nil
	}

	path := cfg.Validation.Expectations
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.WorkspaceDir(), path)
	}
	written, err := validate.ScaffoldExpectations(path)
	if err != nil {
		return fmt.Errorf("scaffold expectations: %w", err)
	}
	if written {
		fmt.Fprintln(out, styleSuccess.Render("wrote")+" "+styleName.Render(path))
	} else {
		fmt.Fprintln(out, styleDim.Render("kept existing "+path))
	}
	return nil
}
