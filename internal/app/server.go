package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/rpc"
)

// PIDFile is the location of the running server's PID file.
func PIDFile(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "server.pid")
}

// RunServer serves the orchestrator over gRPC until SIGINT or SIGTERM.
func RunServer(cfg config.Config) error {
	services, err := NewServices(cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	listener, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", cfg.Bind, err)
	}

	pidFile := PIDFile(cfg)
	if err := writePIDFile(pidFile); err != nil {
		slog.Warn("failed to write PID file", "error", err)
	}
	defer os.Remove(pidFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	server := rpc.NewServer(services.Orchestrator, services.Agents, cfg.Bind, cfg.DataDir)
	return server.Serve(ctx, listener)
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write pid file: mkdir: %w", err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}
