package checker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const workspacePrefix = "code_exec_"

// Workspace is a directory owned by exactly one check. It holds the
// submitted source and the compiled binary and is removed when the check ends.
type Workspace struct {
	Dir    string
	logger *zap.SugaredLogger
}

// NewWorkspace creates a uniquely named directory under root, creating any
// missing parents. An empty root means os.TempDir().
func NewWorkspace(root string, logger *zap.SugaredLogger) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	dir := filepath.Join(root, workspacePrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return &Workspace{Dir: dir, logger: logger}, nil
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the workspace, children before parents. Every entry is
// attempted even if some fail; failures are logged and returned joined.
func (w *Workspace) Close() error {
	var paths []string
	walkErr := filepath.WalkDir(w.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; still try to remove what we can see.
			if path != w.Dir {
				paths = append(paths, path)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fs.ErrNotExist) {
		w.logger.Warnw("Walking workspace failed", "dir", w.Dir, "error", walkErr)
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return depth(paths[i]) > depth(paths[j])
	})

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warnw("Failed to remove workspace entry", "path", p, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func depth(path string) int {
	return strings.Count(filepath.ToSlash(path), "/")
}

// WithWorkspace runs fn inside a fresh workspace under root and removes the
// workspace afterwards, also when fn panics. Removal problems are logged,
// never returned; the only error is failing to create the workspace.
func WithWorkspace[R any](root string, logger *zap.SugaredLogger, fn func(ws *Workspace) R) (R, error) {
	ws, err := NewWorkspace(root, logger)
	if err != nil {
		var zero R
		return zero, err
	}
	defer func() {
		_ = ws.Close()
	}()
	return fn(ws), nil
}
