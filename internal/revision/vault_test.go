package revision

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestVault_RecordWritesLabelledArtifact(t *testing.T) {
	vault := NewVault(filepath.Join(t.TempDir(), "revisions"))

	handle, err := vault.Record("src/a.txt", "hello", LabelBefore)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	name := filepath.Base(handle.Path)
	if !strings.HasPrefix(name, "before_") || !strings.HasSuffix(name, "_a.txt.txt") {
		t.Errorf("unexpected artifact name %q", name)
	}

	data, err := os.ReadFile(handle.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected snapshot content, got %q", data)
	}
	if handle.Label != LabelBefore || handle.Target != "src/a.txt" {
		t.Errorf("unexpected handle: %+v", handle)
	}
}

func TestVault_NeverOverwrites(t *testing.T) {
	vault := NewVault(t.TempDir())
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	vault.now = func() time.Time { return frozen }

	first, err := vault.Record("x.txt", "one", LabelAfter)
	if err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	second, err := vault.Record("x.txt", "two", LabelAfter)
	if err != nil {
		t.Fatalf("second Record failed: %v", err)
	}

	if first.Path == second.Path {
		t.Fatal("expected distinct artifacts for identical timestamps")
	}

	for path, want := range map[string]string{first.Path: "one", second.Path: "two"} {
		data, _ := os.ReadFile(path)
		if string(data) != want {
			t.Errorf("%s: expected %q, got %q", path, want, data)
		}
	}
}

func TestVault_StorageUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "revisions")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	vault := NewVault(blocker)

	_, err := vault.Record("x.txt", "data", LabelBefore)

	var unavailable *StorageUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected StorageUnavailableError, got %v", err)
	}
}
