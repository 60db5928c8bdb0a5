package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/journal"
)

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recorded exchanges, newest first",
		Args:  cobra.NoArgs,
		RunE:  runLogCmd,
	}

	cmd.Flags().IntP("limit", "n", 10, "maximum number of exchanges")
	cmd.Flags().String("conversation", "", "only exchanges of this conversation")
	cmd.Flags().Bool("full", false, "print full prompts and responses")

	return cmd
}

func runLogCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	conversationID, _ := cmd.Flags().GetString("conversation")
	agentName, _ := cmd.Flags().GetString("agent")
	full, _ := cmd.Flags().GetBool("full")

	j, err := journal.Open(a.Config)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	records, err := j.Records(cmd.Context(), journal.Filter{
		ConversationID: core.ConversationID(conversationID),
		Agent:          agentName,
		Limit:          limit,
	})
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, styleDim.Render("No exchanges recorded."))
		return nil
	}

	if full {
		for _, r := range records {
			fmt.Fprintln(out, styleDim.Render(formatTime(r.Timestamp)+" · "+r.Agent+" · "+string(r.ConversationID)))
			fmt.Fprintln(out, stylePrompt.Render("> ")+r.Prompt)
			fmt.Fprintln(out, r.Response)
			if r.PatchPath != "" {
				fmt.Fprintln(out, patchLabel(r))
			}
			fmt.Fprintln(out)
		}
		return nil
	}

	t := newTable("TIME", "AGENT", "PROMPT", "FILE", "USER")
	for _, r := range records {
		file := "-"
		if r.PatchPath != "" {
			file = patchLabel(r)
		}
		t.Row(formatTime(r.Timestamp), r.Agent, truncate(r.Prompt, 48), file, r.User)
	}
	fmt.Fprintln(out, t.Render())
	return nil
}

func patchLabel(r journal.Record) string {
	if r.PatchError != "" {
		return styleError.Render(r.PatchPath + " (failed)")
	}
	return styleSuccess.Render(r.PatchPath)
}

func truncate(s string, max int) string {
	for i, c := range s {
		if c == '\n' {
			s = s[:i]
			break
		}
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
