package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/conversation"
	"github.com/alexr72/wpcv/internal/core"
	"github.com/alexr72/wpcv/internal/rpc"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage stored conversations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored conversations",
		Args:  cobra.NoArgs,
		RunE:  runConversationsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Print a conversation and its token usage",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConversationsShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runConversationsDelete,
	})

	return cmd
}

func runConversationsList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	infos, err := conversation.NewFileStore(a.Config.ConversationsDir()).List()
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), styleDim.Render("No conversations yet."))
		return nil
	}

	active := loadActiveConversation(a.Config.DataDir)
	t := newTable("ID", "MESSAGES", "CREATED", "MODIFIED")
	for _, info := range infos {
		id := string(info.ID)
		if info.ID == active {
			id = styleActive.Render(id + " *")
		}
		t.Row(id, strconv.Itoa(info.MessageCount), formatTime(info.CreatedAt), formatTime(info.ModifiedAt))
	}

	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

func runConversationsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	id := loadActiveConversation(a.Config.DataDir)
	if len(args) == 1 {
		id = core.ConversationID(args[0])
	}
	if id == "" {
		return fmt.Errorf("no active conversation; pass an id")
	}

	store := conversation.NewFileStore(a.Config.ConversationsDir())
	if err := store.Open(id); err != nil {
		return err
	}

	history, err := store.History(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, msg := range history {
		fmt.Fprintln(out, roleStyle(string(msg.Role)).Render(string(msg.Role)))
		fmt.Fprintln(out, msg.Content)
		fmt.Fprintln(out)
	}

	snap, err := store.Snapshot(id, conversation.CharEstimator{}, conversation.Budget{
		Limit:    a.Config.TokenLimit,
		Headroom: a.Config.ResponseReserve,
	})
	if err != nil {
		return err
	}
	printSnapshot(cmd, snap)
	return nil
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	id := core.ConversationID(args[0])
	if a.Remote {
		err = remoteDelete(cmd.Context(), a.ServerAddr, id)
	} else {
		err = conversation.NewFileStore(a.Config.ConversationsDir()).Delete(id)
	}
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	clearActiveConversation(a.Config.DataDir, id)

	fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("deleted")+" "+styleDim.Render(string(id)))
	return nil
}

// remoteDelete goes through the server so a conversation with a request in flight is refused.
func remoteDelete(ctx context.Context, addr string, id core.ConversationID) error {
	client, err := rpc.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.DeleteConversation(ctx, id); err != nil {
		return serverError(err)
	}
	return nil
}

func printSnapshot(cmd *cobra.Command, snap conversation.Snapshot) {
	pct := 0
	if snap.Limit > 0 {
		pct = snap.UsedTokens * 100 / snap.Limit
	}

	pctStyle := styleDim
	switch {
	case pct > 95:
		pctStyle = styleError
	case pct > 80:
		pctStyle = styleWarning
	}

	line := styleDim.Render("ctx") + " " +
		fmt.Sprintf("%d/%d ", snap.UsedTokens, snap.Limit) +
		pctStyle.Render(fmt.Sprintf("%d%%", pct)) + "  " +
		styleDim.Render(fmt.Sprintf("messages:%d reserve:%d free:%d", len(snap.Messages), snap.Headroom, snap.RemainingTokens))

	fmt.Fprintln(cmd.OutOrStdout(), line)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
