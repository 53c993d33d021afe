package build

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is the scratch directory tree of one build.
type Workspace struct {
	Dir string
}

// AssetsDir holds the extracted web files.
func (w *Workspace) AssetsDir() string {
	return filepath.Join(w.Dir, "web-assets")
}

// ProjectDir holds the generated project handed to the Builder.
func (w *Workspace) ProjectDir() string {
	return filepath.Join(w.Dir, "project")
}

// Workspaces owns per-build directories under TempDir and UploadsDir.
type Workspaces struct {
	TempDir    string       // required
	UploadsDir string       // required
	Logger     *slog.Logger // optional
}

// Create creates the workspace for id.
// It fails with ErrBuildIDTaken if the workspace already exists.
func (w *Workspaces) Create(id uuid.UUID) (*Workspace, error) {
	if err := os.MkdirAll(w.TempDir, 0o777); err != nil {
		return nil, fmt.Errorf("build.Workspaces: %w", err)
	}
	dir := filepath.Join(w.TempDir, id.String())
	if err := os.Mkdir(dir, 0o777); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("build.Workspaces: %w", ErrBuildIDTaken)
		}
		return nil, fmt.Errorf("build.Workspaces: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Reap removes the workspace and the staged uploads of id.
// Failures are logged and otherwise ignored.
func (w *Workspaces) Reap(id uuid.UUID) {
	w.reap(w.TempDir, id)
	w.reap(w.UploadsDir, id)
}

// ReapUploads removes only the staged uploads of id.
// Failures are logged and otherwise ignored.
func (w *Workspaces) ReapUploads(id uuid.UUID) {
	w.reap(w.UploadsDir, id)
}

func (w *Workspaces) reap(root string, id uuid.UUID) {
	if root == "" {
		return
	}
	if err := removeWithin(root, filepath.Join(root, id.String())); err != nil {
		w.logger().Error("didn't remove build directory", "build_id", id, "root", root, "err", err)
	}
}

func (w *Workspaces) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// removeWithin removes dir and everything in it
// unless dir is root itself or lies outside root.
func removeWithin(root, dir string) error {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s outside %s", dir, root)
	}
	return os.RemoveAll(dir)
}
