// Package revision stores before/after snapshots of every file the orchestrator mutates.
package revision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Label string

const (
	LabelBefore Label = "before"
	LabelAfter  Label = "after"
)

const timestampLayout = "20060102_150405.000000000"

// Handle identifies one stored snapshot.
type Handle struct {
	Path      string
	Label     Label
	Target    string
	Timestamp time.Time
}

// Vault is an append-only directory of snapshot artifacts. It has no read or
// restore API; restoring is done by hand from the stored files.
type Vault struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewVault(dir string) *Vault {
	return &Vault{dir: dir, now: time.Now}
}

func (v *Vault) Dir() string {
	return v.dir
}

// Record writes content to a new artifact named {label}_{timestamp}_{basename}.txt.
// A name collision gets a numeric suffix; an existing artifact is never overwritten.
func (v *Vault) Record(target, content string, label Label) (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return Handle{}, &StorageUnavailableError{Dir: v.dir, Err: err}
	}

	ts := v.now().UTC()
	base := fmt.Sprintf("%s_%s_%s", label, ts.Format(timestampLayout), sanitizeBase(target))

	for n := 0; ; n++ {
		name := base + ".txt"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.txt", base, n)
		}

		path := filepath.Join(v.dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return Handle{}, &StorageUnavailableError{Dir: v.dir, Err: err}
		}

		_, writeErr := file.WriteString(content)
		closeErr := file.Close()
		if err := errors.Join(writeErr, closeErr); err != nil {
			return Handle{}, &StorageUnavailableError{Dir: v.dir, Err: err}
		}

		return Handle{Path: path, Label: label, Target: target, Timestamp: ts}, nil
	}
}

func sanitizeBase(target string) string {
	base := filepath.Base(filepath.FromSlash(target))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "unnamed"
	}
	return strings.ReplaceAll(base, " ", "_")
}

type StorageUnavailableError struct {
	Dir string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: revisions directory %s: %v", e.Dir, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Err
}
