package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/validate"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check folders, configuration, agent keys and required commands",
		Args:  cobra.NoArgs,
		RunE:  runDoctorCmd,
	}
}

func runDoctorCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	report := validate.CheckEnvironment(a.Config, a.ConfigPath)

	t := newTable("KIND", "NAME", "STATUS", "DETAIL")
	for _, check := range report.Checks {
		detail := check.Detail
		if check.Suggest != "" {
			if detail != "" {
				detail += "; "
			}
			detail += check.Suggest
		}
		t.Row(check.Kind, check.Name, statusLabel(check.Status), styleDim.Render(detail))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())

	if report.Failed() {
		return errors.New("environment check failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("environment ok"))
	return nil
}

func statusLabel(status validate.Status) string {
	switch status {
	case validate.StatusOK:
		return styleSuccess.Render("ok")
	case validate.StatusCreated:
		return styleSuccess.Render("created")
	case validate.StatusWarn:
		return styleWarning.Render("warn")
	default:
		return styleError.Render("fail")
	}
}
