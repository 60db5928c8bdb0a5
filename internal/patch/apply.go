package patch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alexr72/wpcv/internal/revision"
)

// Recorder snapshots file content around a mutation.
type Recorder interface {
	Record(target, content string, label revision.Label) (revision.Handle, error)
}

type Applier struct {
	Root       string
	Allow      []string
	MaxSize    int64
	CreateDirs bool
	Vault      Recorder
}

type Result struct {
	Path    string
	AbsPath string
	Created bool
	Before  revision.Handle
	After   *revision.Handle
	Stats   Stats
	Preview string
}

const maxPreviewLines = 50

// Apply overwrites the directive's target under Root.
//
// The prior content (empty for a new file) is recorded before writing and the new
// content after. A failed write leaves the before snapshot in place and returns an
// *ApplyError; vault failures return *revision.StorageUnavailableError.
func (a *Applier) Apply(d Directive) (Result, error) {
	rel, err := a.checkPath(d.Path)
	if err != nil {
		return Result{}, err
	}

	if a.MaxSize > 0 && int64(len(d.Content)) > a.MaxSize {
		return Result{}, &ApplyError{Path: d.Path, Detail: fmt.Sprintf("content is %d bytes, limit is %d", len(d.Content), a.MaxSize)}
	}

	absPath := filepath.Join(a.Root, rel)
	if err := a.checkContainment(absPath); err != nil {
		return Result{}, &ApplyError{Path: d.Path, Detail: err.Error()}
	}

	result := Result{Path: filepath.ToSlash(rel), AbsPath: absPath}

	mode := fs.FileMode(0o644)
	prior := ""
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		prior = string(data)
		if info, statErr := os.Stat(absPath); statErr == nil {
			mode = info.Mode().Perm()
		}
	case errors.Is(err, fs.ErrNotExist):
		result.Created = true
	default:
		return Result{}, &ApplyError{Path: d.Path, Detail: err.Error()}
	}

	before, err := a.Vault.Record(result.Path, prior, revision.LabelBefore)
	if err != nil {
		return Result{}, err
	}
	result.Before = before

	if err := a.ensureParent(absPath); err != nil {
		return result, &ApplyError{Path: d.Path, Detail: err.Error()}
	}

	if err := os.WriteFile(absPath, []byte(d.Content), mode); err != nil {
		return result, &ApplyError{Path: d.Path, Detail: err.Error()}
	}

	after, err := a.Vault.Record(result.Path, d.Content, revision.LabelAfter)
	if err != nil {
		return result, err
	}
	result.After = &after

	result.Stats = DiffStats(prior, d.Content)
	result.Preview = Preview(result.Path, prior, d.Content, maxPreviewLines)

	slog.Info("file modified",
		"path", result.Path,
		"created", result.Created,
		"added", result.Stats.Added,
		"removed", result.Stats.Removed,
	)

	return result, nil
}

func (a *Applier) checkPath(path string) (string, error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) {
		return "", &ApplyError{Path: path, Detail: "absolute paths are not allowed"}
	}

	rel := filepath.Clean(filepath.FromSlash(path))
	if !filepath.IsLocal(rel) {
		return "", &ApplyError{Path: path, Detail: "path escapes the workspace"}
	}

	if !a.allowed(filepath.ToSlash(rel)) {
		return "", &ApplyError{Path: path, Detail: "path is not in the allow list"}
	}

	return rel, nil
}

func (a *Applier) allowed(slashPath string) bool {
	if len(a.Allow) == 0 {
		return true
	}
	for _, pattern := range a.Allow {
		if ok, err := doublestar.Match(pattern, slashPath); err == nil && ok {
			return true
		}
	}
	return false
}

// checkContainment rejects targets that resolve outside Root through a symlink, on the file itself or its nearest existing parent.
func (a *Applier) checkContainment(absPath string) error {
	root, err := filepath.EvalSymlinks(a.Root)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		if _, err := filepath.EvalSymlinks(absPath); err != nil {
			return errors.New("path is a dangling symlink")
		}
	}

	dir := absPath
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			rel, err := filepath.Rel(root, resolved)
			if err != nil || (rel != "." && !filepath.IsLocal(rel)) {
				return errors.New("path resolves outside the workspace")
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func (a *Applier) ensureParent(absPath string) error {
	parent := filepath.Dir(absPath)
	if _, err := os.Stat(parent); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if !a.CreateDirs {
		return fmt.Errorf("parent directory %s does not exist", parent)
	}
	return os.MkdirAll(parent, 0o755)
}

type ApplyError struct {
	Path   string
	Detail string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("patch apply failed: %s: %s", e.Path, e.Detail)
}
