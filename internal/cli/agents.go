package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/agent"
	"github.com/alexr72/wpcv/internal/rpc"
)

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List configured agents",
		RunE:  runAgentsCmd,
	}
}

func runAgentsCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	var summaries []agent.Summary
	if a.Remote {
		summaries, err = remoteAgents(cmd.Context(), a.ServerAddr)
		if err != nil {
			return err
		}
	} else {
		summaries = agent.NewRegistry(a.Config.Agents).List()
	}

	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), styleDim.Render("No agents configured."))
		fmt.Fprintln(cmd.OutOrStdout(), "Add an [agents.<name>] table to "+styleName.Render(a.ConfigPath))
		return nil
	}

	printAgentsTable(cmd, summaries, a.Config.DefaultAgent)
	return nil
}

func remoteAgents(ctx context.Context, addr string) ([]agent.Summary, error) {
	client, err := rpc.Dial(addr)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	summaries, err := client.ListAgents(ctx)
	if err != nil {
		return nil, serverError(err)
	}
	return summaries, nil
}

func printAgentsTable(cmd *cobra.Command, summaries []agent.Summary, defaultAgent string) {
	t := newTable("NAME", "MODEL", "FORMAT", "KEY", "URL")

	for _, s := range summaries {
		name := s.Name
		if s.Name == defaultAgent {
			name = styleActive.Render(s.Name + " *")
		}
		key := styleError.Render("missing")
		if s.HasSecret {
			key = styleSuccess.Render("✓")
		}
		t.Row(name, s.Model, s.Format, key, styleDim.Render(s.URL))
	}

	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
}
