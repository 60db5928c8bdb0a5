package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ReadPID reads a PID from the given file and returns it if the process is alive, or 0 otherwise.
func ReadPID(pidFile string) int {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0
	}

	if process.Signal(syscall.Signal(0)) != nil {
		return 0
	}

	return pid
}

// StopServer sends SIGTERM to the process recorded in pidFile.
// It returns the PID that was signalled, or 0 when no server was running.
func StopServer(pidFile string) (int, error) {
	pid := ReadPID(pidFile)
	if pid == 0 {
		return 0, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("stop server: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return 0, fmt.Errorf("stop server: signal %d: %w", pid, err)
	}
	return pid, nil
}
