package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/app"
	"github.com/alexr72/wpcv/internal/rpc"
)

func newPsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps",
		Short: "Show whether the server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			t := newTable("NAME", "STATUS", "PID", "ENDPOINT", "UPTIME")

			pid := app.ReadPID(app.PIDFile(a.Config))
			if pid == 0 {
				t.Row("wpcv", styleError.Render("stopped"), "-", a.ServerAddr, "-")
			} else {
				status, uptime := serverStatus(cmd.Context(), a.ServerAddr)
				t.Row("wpcv", status, fmt.Sprintf("%d", pid), a.ServerAddr, uptime)
			}

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

func serverStatus(ctx context.Context, addr string) (string, string) {
	client, err := rpc.Dial(addr)
	if err != nil {
		return styleWarning.Render("unreachable"), "-"
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st, err := client.Status(ctx)
	if err != nil {
		return styleWarning.Render("starting"), "-"
	}
	return styleSuccess.Render("running"), st.Uptime
}
