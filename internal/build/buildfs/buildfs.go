// Package buildfs keeps published artifacts in a local directory.
package buildfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/k11v/web2app/internal/build"
)

var _ build.ArtifactStore = (*Store)(nil)

type Store struct {
	Dir string // required
}

// Put writes the artifact to a temporary file in Dir and renames it
// into place, so readers never see a partial artifact.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) error {
	if !build.IsValidArtifactName(name) {
		return fmt.Errorf("buildfs.Store: invalid artifact name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0o777); err != nil {
		return fmt.Errorf("buildfs.Store: %w", err)
	}

	f, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("buildfs.Store: %w", err)
	}
	tempName := f.Name()
	defer func() {
		_ = os.Remove(tempName)
	}()
	defer f.Close()

	if _, err = io.Copy(f, contextReader{ctx: ctx, r: r}); err != nil {
		return fmt.Errorf("buildfs.Store: %w", err)
	}
	if err = f.Chmod(0o644); err != nil {
		return fmt.Errorf("buildfs.Store: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("buildfs.Store: %w", err)
	}
	if err = os.Rename(tempName, filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("buildfs.Store: %w", err)
	}

	return nil
}

// Open returns the artifact. The returned io.ReadCloser is an *os.File
// so callers can serve ranges.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !build.IsValidArtifactName(name) {
		return nil, fmt.Errorf("buildfs.Store: %w", build.ErrNotFound)
	}

	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("buildfs.Store: %w", build.ErrNotFound)
		}
		return nil, fmt.Errorf("buildfs.Store: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("buildfs.Store: %w", err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("buildfs.Store: %w", build.ErrNotFound)
	}

	return f, nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
