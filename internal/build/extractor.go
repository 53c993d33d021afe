package build

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	EntryDocument           = "index.html"
	DefaultMaxExtractedSize = 512 * 1024 * 1024 // 512MB
)

var zipMagic = []byte("PK\x03\x04")

// Extractor materializes an uploaded site into a directory.
type Extractor struct {
	MaxExtractedSize int64 // zero value means DefaultMaxExtractedSize
}

type ExtractorExtractParams struct {
	SourceFile string
	DestDir    string
}

// Extract unpacks a zip archive into DestDir or, if SourceFile isn't an
// archive, copies it into DestDir under its base name.
// Errors are ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, params *ExtractorExtractParams) error {
	if err := os.MkdirAll(params.DestDir, 0o777); err != nil {
		return stageError(ErrExtraction, err)
	}

	isArchive, err := isZipFile(params.SourceFile)
	if err != nil {
		return stageError(ErrExtraction, err)
	}
	if !isArchive {
		dst := filepath.Join(params.DestDir, filepath.Base(params.SourceFile))
		if err = copyFile(params.SourceFile, dst); err != nil {
			return stageError(ErrExtraction, err)
		}
		return nil
	}

	if err = e.extractZip(ctx, params.SourceFile, params.DestDir); err != nil {
		return stageError(ErrExtraction, err)
	}
	return nil
}

func (e *Extractor) maxExtractedSize() int64 {
	if e.MaxExtractedSize <= 0 {
		return DefaultMaxExtractedSize
	}
	return e.MaxExtractedSize
}

func (e *Extractor) extractZip(ctx context.Context, src, destDir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	// Check every entry before writing anything.
	targets := make([]string, len(zr.File))
	for i, f := range zr.File {
		target, err := entryTarget(absDestDir, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		if !mode.IsDir() && !mode.IsRegular() {
			return fmt.Errorf("entry %q is not a regular file or directory", f.Name)
		}
		targets[i] = target
	}

	remaining := e.maxExtractedSize()
	for i, f := range zr.File {
		if err = ctx.Err(); err != nil {
			return err
		}
		target := targets[i]
		if target == absDestDir {
			continue
		}
		if f.Mode().IsDir() {
			if err = os.MkdirAll(target, 0o777); err != nil {
				return err
			}
			continue
		}
		n, err := extractZipFile(f, target, remaining)
		if err != nil {
			return err
		}
		remaining -= n
	}

	return nil
}

// extractZipFile writes f to target, failing if it is larger than limit.
func extractZipFile(f *zip.File, target string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o777); err != nil {
		return 0, err
	}

	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if err != nil {
		return n, fmt.Errorf("entry %q: %w", f.Name, err)
	}
	if n > limit {
		return n, errors.New("archive is too large when extracted")
	}

	return n, out.Close()
}

// entryTarget resolves an archive entry name against absDestDir.
// It fails if the entry would land outside absDestDir.
func entryTarget(absDestDir, name string) (string, error) {
	normalized := strings.ReplaceAll(name, `\`, "/")
	if normalized == "" || strings.HasPrefix(normalized, "/") || hasDriveLetter(normalized) {
		return "", fmt.Errorf("entry %q has an absolute path", name)
	}

	target := filepath.Join(absDestDir, filepath.FromSlash(normalized))
	rel, err := filepath.Rel(absDestDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q is outside the destination directory", name)
	}

	return target, nil
}

func hasDriveLetter(name string) bool {
	return len(name) >= 2 && name[1] == ':'
}

// isZipFile reports whether name looks like a zip archive
// by its extension or its leading bytes.
func isZipFile(name string) (bool, error) {
	if strings.EqualFold(filepath.Ext(name), ".zip") {
		return true, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bytes.Equal(header[:n], zipMagic), nil
}

// Validate checks that dir holds a web application,
// that is an entry document at its root. Errors are ErrContentValidation.
func Validate(dir string) error {
	info, err := os.Stat(filepath.Join(dir, EntryDocument))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stageError(ErrContentValidation, fmt.Errorf("%s not found in the uploaded web files", EntryDocument))
		}
		return stageError(ErrContentValidation, err)
	}
	if !info.Mode().IsRegular() {
		return stageError(ErrContentValidation, fmt.Errorf("%s is not a regular file", EntryDocument))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err = os.MkdirAll(filepath.Dir(dst), 0o777); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// copyDir copies the regular files and directories under src into dst.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(name string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, name)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o777)
		case d.Type().IsRegular():
			return copyFile(name, target)
		default:
			return nil
		}
	})
}
