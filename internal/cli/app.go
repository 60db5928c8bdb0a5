package cli

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexr72/wpcv/internal/app"
	"github.com/alexr72/wpcv/internal/config"
	"github.com/alexr72/wpcv/internal/core"
)

const activeConversationFile = "active_conversation"

type App struct {
	Config     config.Config
	ConfigPath string
	ServerAddr string
	Remote     bool
}

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	serverOverride, _ := cmd.Flags().GetString("server")

	if configPath == "" {
		configPath = config.Path()
	}

	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Debug = config.LoadDebugConfigFromEnv(cfg.Debug)

	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		ServerAddr: resolveServer(serverOverride, cfg),
		Remote:     serverOverride != "",
	}, nil
}

func resolveServer(override string, cfg config.Config) string {
	if override != "" {
		return override
	}
	return clientAddrFromBind(cfg.Bind)
}

func clientAddrFromBind(bind string) string {
	host, port, err := netSplitHostPort(bind)
	if err != nil || port == "" {
		return bind
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1:" + port
	}
	return bind
}

func netSplitHostPort(addr string) (string, string, error) {
	if strings.HasPrefix(addr, ":") {
		return "", strings.TrimPrefix(addr, ":"), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", err
	}
	return host, port, nil
}

func alreadyRunning(cfg config.Config) bool {
	return app.ReadPID(app.PIDFile(cfg)) != 0
}

func loadActiveConversation(dataDir string) core.ConversationID {
	data, err := os.ReadFile(filepath.Join(dataDir, activeConversationFile))
	if err != nil {
		return ""
	}
	return core.ConversationID(strings.TrimSpace(string(data)))
}

func saveActiveConversation(dataDir string, id core.ConversationID) error {
	if id == "" {
		return nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("save active conversation: mkdir: %w", err)
	}

	path := filepath.Join(dataDir, activeConversationFile)
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return fmt.Errorf("save active conversation: %w", err)
	}
	return nil
}

func clearActiveConversation(dataDir string, id core.ConversationID) {
	if loadActiveConversation(dataDir) == id {
		os.Remove(filepath.Join(dataDir, activeConversationFile))
	}
}
