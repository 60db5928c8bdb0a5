package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/app"
	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/orchestrator"
	"github.com/alexr72/wpcv/internal/provider"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Send one prompt to an agent",
		Long:  "Send one prompt to an agent. With no arguments the prompt is read from stdin.",
		Args:  cobra.ArbitraryArgs,
		RunE:  runPromptCmd,
	}

	cmd.Flags().String("conversation", "", "conversation id to continue")
	cmd.Flags().Bool("new", false, "start a new conversation")
	cmd.Flags().Bool("diff", false, "print a preview of applied changes")

	return cmd
}

func runPromptCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	closer := app.SetupLogging(a.Config)
	defer closer.Close()

	agentName, _ := cmd.Flags().GetString("agent")
	showDiff, _ := cmd.Flags().GetBool("diff")

	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	b, err := openBackend(a)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := cmd.Context()

	id, err := selectConversation(cmd, a, b)
	if err != nil {
		return err
	}

	if err := saveActiveConversation(a.Config.DataDir, id); err != nil {
		slog.Warn("failed to save active conversation", "error", err)
	}

	workingDir, _ := os.Getwd()

	ex, err := b.Submit(ctx, orchestrator.Request{
		ConversationID: id,
		Agent:          agentName,
		Prompt:         prompt,
		WorkingDir:     workingDir,
	})
	if err != nil {
		printSubmitError(cmd.ErrOrStderr(), err)
		return err
	}

	printExchange(cmd.OutOrStdout(), newMarkdownRenderer(), ex, showDiff)
	return nil
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt != "" {
		return prompt, nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	prompt = strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("prompt is required")
	}
	return prompt, nil
}

func selectConversation(cmd *cobra.Command, a *App, b backend) (core.ConversationID, error) {
	ctx := cmd.Context()

	if fresh, _ := cmd.Flags().GetBool("new"); fresh {
		return b.NewConversation(ctx)
	}

	if explicit, _ := cmd.Flags().GetString("conversation"); explicit != "" {
		return core.ConversationID(explicit), nil
	}

	return b.Resume(ctx, loadActiveConversation(a.Config.DataDir))
}

func printSubmitError(w io.Writer, err error) {
	var timeout *provider.TimeoutError
	switch {
	case errors.Is(err, orchestrator.ErrConversationBusy):
		fmt.Fprintln(w, styledError("conversation is busy", "wait for the outstanding request to finish"))
	case errors.Is(err, provider.ErrCancelled):
		fmt.Fprintln(w, styleWarning.Render("cancelled"))
	case errors.As(err, &timeout):
		fmt.Fprintln(w, styledError("request timed out", err.Error()))
	default:
		fmt.Fprintln(w, styledError("prompt failed", err.Error()))
	}
}

func printExchange(w io.Writer, renderer *glamour.TermRenderer, ex exchange, showDiff bool) {
	if ex.Text != "" {
		fmt.Fprint(w, renderMarkdown(renderer, ex.Text))
	}

	if ex.PatchPath != "" {
		if ex.PatchError != "" {
			fmt.Fprintln(w, styleError.Render("not applied")+" "+styleName.Render(ex.PatchPath)+" "+styleDim.Render(ex.PatchError))
		} else {
			verb := "modified"
			if ex.Created {
				verb = "created"
			}
			fmt.Fprintln(w, styleSuccess.Render(verb)+" "+styleName.Render(ex.PatchPath)+" "+
				styleAdded.Render(fmt.Sprintf("+%d", ex.Added))+" "+styleRemove.Render(fmt.Sprintf("-%d", ex.Removed)))
			if showDiff && ex.Preview != "" {
				fmt.Fprint(w, styleDim.Render(ex.Preview))
				fmt.Fprintln(w)
			}
		}
	}

	for _, finding := range ex.Findings {
		fmt.Fprintln(w, styleWarning.Render("finding")+" "+finding)
	}

	if ex.JournalError != "" {
		fmt.Fprintln(w, styleWarning.Render("journal: "+ex.JournalError))
	}

	meta := styleDim.Render(fmt.Sprintf("%s · %s", ex.Agent, ex.ConversationID))
	if ex.Trimmed > 0 {
		meta += " " + styleDim.Render(fmt.Sprintf("(%d older messages dropped)", ex.Trimmed))
	}
	fmt.Fprintln(w, meta)
}
