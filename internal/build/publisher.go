package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

const ArtifactExt = ".apk"

// ArtifactStore keeps published artifacts under their names.
//
// Put replaces an existing artifact with the same name atomically.
// Open returns ErrNotFound if there is no artifact with the name.
type ArtifactStore interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// SanitizeName replaces every character outside [A-Za-z0-9] with '_'.
// Applying it twice gives the same result as applying it once.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
			b.WriteRune(r)
		case r >= 0x10000:
			// One per UTF-16 code unit, like the web front-end sees it.
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ArtifactName returns the published file name for an app version.
func ArtifactName(appName, versionName string) string {
	return SanitizeName(appName) + "_" + versionName + ArtifactExt
}

// IsValidArtifactName reports whether name can refer to a published artifact.
// It rejects anything that isn't a single plain path element.
func IsValidArtifactName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}

// Publisher copies build artifacts into an ArtifactStore.
type Publisher struct {
	Store ArtifactStore // required
}

type PublisherPublishParams struct {
	Request      *Request
	ArtifactFile string
}

// Publish stores the artifact under ArtifactName and returns that name.
// Artifacts with the same name are overwritten. Errors are ErrPublish.
func (p *Publisher) Publish(ctx context.Context, params *PublisherPublishParams) (string, error) {
	name := ArtifactName(params.Request.AppName, params.Request.VersionName)
	if !IsValidArtifactName(name) {
		return "", stageError(ErrPublish, fmt.Errorf("invalid artifact name %q", name))
	}

	f, err := os.Open(params.ArtifactFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.New("artifact not found")
		}
		return "", stageError(ErrPublish, err)
	}
	defer f.Close()

	if err = p.Store.Put(ctx, name, f); err != nil {
		return "", stageError(ErrPublish, err)
	}

	return name, nil
}
