package provider

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLogDir(t *testing.T, dir string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "provider_*.jsonl"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}

	var out strings.Builder
	for _, match := range matches {
		data, err := os.ReadFile(match)
		if err != nil {
			t.Fatalf("read %s: %v", match, err)
		}
		out.Write(data)
	}
	return out.String()
}

func TestRequestLogger_ErrorsAlwaysLogged(t *testing.T) {
	dir := t.TempDir()
	logger := NewRequestLogger(dir, false, false, nil)

	logger.LogError("req_1", "local", 2, 503, "busy")

	data := readLogDir(t, dir)
	if !strings.Contains(data, `"type":"error"`) || !strings.Contains(data, `"status_code":503`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestRequestLogger_RequestsGatedByFlag(t *testing.T) {
	dir := t.TempDir()
	logger := NewRequestLogger(dir, false, false, nil)

	logger.LogRequest("req_1", "local", nil, nil)

	if data := readLogDir(t, dir); data != "" {
		t.Errorf("expected nothing logged, got %s", data)
	}
}
