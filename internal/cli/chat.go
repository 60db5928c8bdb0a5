package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/app"
	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/orchestrator"
)

const chatHelp = `/new              start a new conversation
/agent [name]     show or switch the agent
/conversation     show the current conversation id
/diff             toggle change previews
/quit             leave the chat`

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive prompt loop with line editing and history",
		RunE:  runChatCmd,
	}

	cmd.Flags().String("conversation", "", "conversation id to continue")
	cmd.Flags().Bool("new", false, "start a new conversation")

	return cmd
}

type chatSession struct {
	backend    backend
	dataDir    string
	agent      string
	id         core.ConversationID
	showDiff   bool
	workingDir string
	out        io.Writer
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	closer := app.SetupLogging(a.Config)
	defer closer.Close()

	b, err := openBackend(a)
	if err != nil {
		return err
	}
	defer b.Close()

	id, err := selectConversation(cmd, a, b)
	if err != nil {
		return err
	}

	agentName, _ := cmd.Flags().GetString("agent")
	if agentName == "" {
		agentName = a.Config.DefaultAgent
	}

	workingDir, _ := os.Getwd()
	session := &chatSession{
		backend:    b,
		dataDir:    a.Config.DataDir,
		agent:      agentName,
		id:         id,
		workingDir: workingDir,
		out:        cmd.OutOrStdout(),
	}
	session.activate(id)

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	historyFile := filepath.Join(a.Config.DataDir, "chat_history")
	loadChatHistory(line, historyFile)
	defer saveChatHistory(line, historyFile)

	fmt.Fprintln(session.out, styleDim.Render("conversation "+string(id)+" · agent "+agentName+" · /help for commands"))
	renderer := newMarkdownRenderer()

	for {
		input, err := line.Prompt(session.agent + "> ")
		if err != nil {
			// Ctrl+C, Ctrl+D and closed stdin all end the session.
			fmt.Fprintln(session.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if !session.handleCommand(cmd.Context(), input) {
				return nil
			}
			continue
		}

		ex, err := session.submit(cmd.Context(), input)
		if err != nil {
			printSubmitError(cmd.ErrOrStderr(), err)
			continue
		}
		printExchange(session.out, renderer, ex, session.showDiff)
	}
}

// submit runs one prompt; Ctrl+C while waiting cancels only this request.
func (s *chatSession) submit(ctx context.Context, prompt string) (exchange, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	return s.backend.Submit(ctx, orchestrator.Request{
		ConversationID: s.id,
		Agent:          s.agent,
		Prompt:         prompt,
		WorkingDir:     s.workingDir,
	})
}

// handleCommand reports whether the loop should continue.
func (s *chatSession) handleCommand(ctx context.Context, input string) bool {
	name, args := parseChatCommand(input)

	switch name {
	case "quit", "exit", "q":
		return false
	case "help":
		fmt.Fprintln(s.out, chatHelp)
	case "new":
		id, err := s.backend.NewConversation(ctx)
		if err != nil {
			fmt.Fprintln(s.out, styledError("new conversation failed", err.Error()))
			return true
		}
		s.activate(id)
		fmt.Fprintln(s.out, styleSuccess.Render("started")+" "+styleDim.Render(string(id)))
	case "agent":
		if args == "" {
			fmt.Fprintln(s.out, "agent "+styleName.Render(s.agent))
			return true
		}
		s.agent = args
		fmt.Fprintln(s.out, "switched to "+styleName.Render(s.agent))
	case "conversation":
		fmt.Fprintln(s.out, string(s.id))
	case "diff":
		s.showDiff = !s.showDiff
		fmt.Fprintln(s.out, styleDim.Render(fmt.Sprintf("change previews: %t", s.showDiff)))
	default:
		fmt.Fprintln(s.out, styledError("unknown command /"+name, "type /help for the list"))
	}
	return true
}

func (s *chatSession) activate(id core.ConversationID) {
	s.id = id
	if err := saveActiveConversation(s.dataDir, id); err != nil {
		slog.Warn("failed to save active conversation", "error", err)
	}
}

func parseChatCommand(input string) (name, args string) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, args, _ = strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func loadChatHistory(line *liner.State, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := line.ReadHistory(f); err != nil {
		slog.Warn("failed to read chat history", "error", err)
	}
}

func saveChatHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		slog.Warn("failed to save chat history", "error", err)
		return
	}
	defer f.Close()

	if _, err := line.WriteHistory(f); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("failed to save chat history", "error", err)
	}
}
