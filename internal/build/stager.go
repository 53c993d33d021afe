package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/k11v/web2app/internal/multifile"
)

// Form names accepted by Stager.
const (
	FormWebFiles     = "webFiles"
	FormAppIcon      = "appIcon"
	FormSplashScreen = "splashScreen"
	FormAppName      = "appName"
	FormPackageName  = "packageName"
	FormVersionName  = "versionName"
	FormVersionCode  = "versionCode"
)

const (
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	maxFieldSize       = 64 * 1024
)

var (
	packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)
	versionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// Stager accepts an upload and stages its files under UploadsDir/<build id>.
type Stager struct {
	UploadsDir  string // required
	MaxFileSize int64  // zero value means DefaultMaxFileSize
}

type StagerStageParams struct {
	Parts *multifile.Reader
}

// Stage reads all parts, writes file parts to disk and returns
// a validated Request with a fresh ID.
// If it returns an error, nothing is left on disk.
func (s *Stager) Stage(ctx context.Context, params *StagerStageParams) (req *Request, err error) {
	id := uuid.New()
	dir := filepath.Join(s.UploadsDir, id.String())
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	fields := make(map[string]string)
	files := make(map[string]string)

	for params.Parts.Read() {
		if err = ctx.Err(); err != nil {
			return nil, fmt.Errorf("build.Stager: %w", err)
		}
		part := params.Parts.Part()

		switch {
		case part.FileName == "":
			value, err := readField(part)
			if err != nil {
				return nil, err
			}
			fields[part.FormName] = value
		case part.FormName == FormWebFiles || part.FormName == FormAppIcon || part.FormName == FormSplashScreen:
			if _, found := files[part.FormName]; found {
				return nil, &ValidationError{Message: fmt.Sprintf("Multiple %s files", part.FormName)}
			}
			name, err := s.writeFile(filepath.Join(dir, part.FormName), part)
			if err != nil {
				return nil, err
			}
			files[part.FormName] = name
		default:
			// Unknown file field.
			if _, err = io.Copy(io.Discard, part.Content); err != nil {
				return nil, &ValidationError{Message: fmt.Sprintf("Invalid request body: %v", err)}
			}
		}
	}
	if err = params.Parts.Err(); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid request body: %v", err)}
	}

	appName := strings.TrimSpace(fields[FormAppName])
	packageName := strings.TrimSpace(fields[FormPackageName])
	if appName == "" || packageName == "" {
		return nil, &ValidationError{Message: "Missing required fields"}
	}
	if files[FormWebFiles] == "" {
		return nil, &ValidationError{Message: "Web files are required"}
	}
	if !packageNamePattern.MatchString(packageName) {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid package name %q", packageName)}
	}

	versionName := strings.TrimSpace(fields[FormVersionName])
	if versionName == "" {
		versionName = DefaultVersionName
	}
	if !versionNamePattern.MatchString(versionName) {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid version name %q", versionName)}
	}

	versionCode := DefaultVersionCode
	if v := strings.TrimSpace(fields[FormVersionCode]); v != "" {
		versionCode, err = strconv.Atoi(v)
		if err != nil || versionCode <= 0 {
			err = &ValidationError{Message: fmt.Sprintf("Invalid version code %q", v)}
			return nil, err
		}
	}

	return &Request{
		ID:              id,
		AppName:         appName,
		PackageName:     packageName,
		VersionName:     versionName,
		VersionCode:     versionCode,
		SiteArchiveFile: files[FormWebFiles],
		IconFile:        files[FormAppIcon],
		SplashFile:      files[FormSplashScreen],
	}, nil
}

func (s *Stager) maxFileSize() int64 {
	if s.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return s.MaxFileSize
}

// writeFile writes the part content to dir under its original base name.
func (s *Stager) writeFile(dir string, part *multifile.Part) (string, error) {
	baseName := path.Base(strings.ReplaceAll(part.FileName, `\`, "/"))
	if baseName == "." || baseName == ".." || baseName == "/" {
		return "", &ValidationError{Message: fmt.Sprintf("Invalid %s file name %q", part.FormName, part.FileName)}
	}

	if err := os.MkdirAll(dir, 0o777); err != nil {
		return "", fmt.Errorf("build.Stager: %w", err)
	}
	name := filepath.Join(dir, baseName)
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return "", fmt.Errorf("build.Stager: %w", err)
	}
	defer f.Close()

	maxSize := s.maxFileSize()
	n, err := io.Copy(f, io.LimitReader(part.Content, maxSize+1))
	if err != nil {
		return "", &ValidationError{Message: fmt.Sprintf("Invalid request body: %v", err)}
	}
	if n > maxSize {
		return "", &ValidationError{Message: fmt.Sprintf("File %s is too large, limit is %d bytes", part.FormName, maxSize)}
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("build.Stager: %w", err)
	}

	return name, nil
}

func readField(part *multifile.Part) (string, error) {
	value, err := io.ReadAll(io.LimitReader(part.Content, maxFieldSize+1))
	if err != nil {
		return "", &ValidationError{Message: fmt.Sprintf("Invalid request body: %v", err)}
	}
	if len(value) > maxFieldSize {
		return "", &ValidationError{Message: fmt.Sprintf("Field %s is too large", part.FormName)}
	}
	return string(value), nil
}
