package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/validate"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Run the validation pipeline over files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidateCmd,
	}

	cmd.Flags().String("expectations", "", "expectations file (default from config)")
	cmd.Flags().Bool("json", false, "print reports as JSON")

	return cmd
}

func runValidateCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	expectationsPath, _ := cmd.Flags().GetString("expectations")
	asJSON, _ := cmd.Flags().GetBool("json")

	explicit := expectationsPath != ""
	if !explicit {
		expectationsPath = a.Config.Validation.Expectations
		if expectationsPath != "" && !filepath.IsAbs(expectationsPath) {
			expectationsPath = filepath.Join(a.Config.WorkspaceDir(), expectationsPath)
		}
	}

	var expectations []string
	if expectationsPath != "" {
		expectations, err = validate.LoadExpectations(expectationsPath)
		if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			return fmt.Errorf("load expectations: %w", err)
		}
	}

	pipeline := validate.DefaultPipeline()
	reports := make([]validate.Report, 0, len(args))
	for _, path := range args {
		code, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		reports = append(reports, pipeline.Run(cmd.Context(), validate.Input{
			Path:         path,
			Code:         string(code),
			Expectations: expectations,
		}))
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, report := range reports {
		t := newTable("CHECK", "FINDINGS", "STATUS")
		for _, check := range report.Checks {
			status := styleSuccess.Render("clean")
			switch {
			case check.Err != "":
				status = styleError.Render(check.Err)
			case len(check.Findings) > 0:
				status = styleWarning.Render("findings")
			}
			t.Row(check.Name, strconv.Itoa(len(check.Findings)), status)
		}
		fmt.Fprintln(out, styleName.Render(report.Path)+" "+styleDim.Render(fmt.Sprintf("(%d expectations)", len(expectations))))
		fmt.Fprintln(out, t.Render())

		for _, f := range report.Findings() {
			location := ""
			if f.Line > 0 {
				location = fmt.Sprintf(":%d", f.Line)
			}
			fmt.Fprintln(out, "  "+styleWarning.Render(f.Check)+" "+report.Path+location+" "+f.Message)
		}
	}
	return nil
}
