package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/app"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the wpcv server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			pid, err := app.StopServer(app.PIDFile(a.Config))
			if err != nil {
				return err
			}
			if pid == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styleDim.Render("server not running"))
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("stopped server")+" "+stylePID.Render(fmt.Sprintf("pid %d", pid)))
			return nil
		},
	}
}
