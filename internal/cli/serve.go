package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/app"
	"github.com/alexr72/wpcv/internal/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the wpcv gRPC server",
		RunE:  runServeCmd,
	}

	cmd.Flags().Bool("foreground", false, "run server in foreground")
	cmd.Flags().String("bind", "", "bind address (overrides config)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	foreground, _ := cmd.Flags().GetBool("foreground")
	bindOverride, _ := cmd.Flags().GetString("bind")

	cfg := a.Config
	if bindOverride != "" {
		cfg.Bind = bindOverride
	}

	if foreground {
		app.SetupStderrLogging(cfg)
		return app.RunServer(cfg)
	}

	return startServer(cmd, cfg, a.ConfigPath, bindOverride)
}

func startServer(cmd *cobra.Command, cfg config.Config, configPath, bind string) error {
	out := cmd.OutOrStdout()

	if alreadyRunning(cfg) {
		fmt.Fprintln(out, styleDim.Render("server already running at "+clientAddrFromBind(cfg.Bind)))
		return nil
	}

	serverCmd := exec.Command(os.Args[0], "serve", "--foreground", "--config", configPath)
	if bind != "" {
		serverCmd.Args = append(serverCmd.Args, "--bind", bind)
	}

	if err := os.MkdirAll(cfg.LogsDir(), 0o755); err != nil {
		return fmt.Errorf("start server: create log dir: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogsDir(), "server.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("start server: open log: %w", err)
	}
	defer logFile.Close()

	serverCmd.Stdout = logFile
	serverCmd.Stderr = logFile

	if err := serverCmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	fmt.Fprintln(out, styleSuccess.Render("started server")+" "+
		stylePID.Render(fmt.Sprintf("pid %d", serverCmd.Process.Pid))+" "+
		styleDim.Render(clientAddrFromBind(cfg.Bind)))
	return nil
}
