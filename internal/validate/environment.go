package validate

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/alexr72/wpcv/internal/config"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusCreated Status = "created"
	StatusWarn    Status = "warn"
	StatusFail    Status = "fail"
)

type EnvCheck struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Suggest string `json:"suggest,omitempty"`
}

type EnvReport struct {
	Checks []EnvCheck `json:"checks"`
}

func (r EnvReport) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			return true
		}
	}
	return false
}

// CheckEnvironment inspects the data directory, config file, agent secrets and
// required commands. Missing data folders are created.
func CheckEnvironment(cfg config.Config, configPath string) EnvReport {
	var report EnvReport

	folders := []string{cfg.DataDir, cfg.ConversationsDir(), cfg.RevisionsDir(), cfg.LogsDir()}
	for _, folder := range folders {
		report.Checks = append(report.Checks, ensureFolder(folder))
	}

	if _, err := os.Stat(configPath); err != nil {
		report.Checks = append(report.Checks, EnvCheck{Kind: "file", Name: configPath, Status: StatusFail, Detail: err.Error(), Suggest: "run wpcv init"})
	} else {
		report.Checks = append(report.Checks, EnvCheck{Kind: "file", Name: configPath, Status: StatusOK})
	}

	if cfg.User.Name == "" {
		report.Checks = append(report.Checks, EnvCheck{Kind: "user", Name: "user.name", Status: StatusWarn, Detail: "no user name configured"})
	}

	for name, agentCfg := range cfg.Agents {
		check := EnvCheck{Kind: "agent", Name: name, Status: StatusOK}
		if agentCfg.ResolveSecret() == "" {
			check.Status = StatusWarn
			check.Detail = "no api key"
			if agentCfg.APIKeyEnv != "" {
				check.Suggest = "export " + agentCfg.APIKeyEnv
			}
		}
		report.Checks = append(report.Checks, check)
	}

	for _, cmd := range cfg.Doctor.Commands {
		report.Checks = append(report.Checks, checkCommand(cmd))
	}

	return report
}

func ensureFolder(path string) EnvCheck {
	check := EnvCheck{Kind: "folder", Name: path}

	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		check.Status = StatusOK
	case err == nil:
		check.Status = StatusFail
		check.Detail = "exists but is not a directory"
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			check.Status = StatusFail
			check.Detail = mkErr.Error()
		} else {
			check.Status = StatusCreated
		}
	default:
		check.Status = StatusFail
		check.Detail = err.Error()
	}

	return check
}

func checkCommand(name string) EnvCheck {
	path, err := exec.LookPath(name)
	if err != nil {
		return EnvCheck{
			Kind:    "command",
			Name:    name,
			Status:  StatusFail,
			Detail:  "not found on PATH",
			Suggest: fmt.Sprintf("sudo apt install %s", name),
		}
	}
	return EnvCheck{Kind: "command", Name: name, Status: StatusOK, Detail: path}
}
