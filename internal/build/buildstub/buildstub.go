// Package buildstub simulates the Android toolchain.
// It lets the service run end to end on machines without an Android SDK.
package buildstub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/k11v/web2app/internal/build"
)

const (
	DefaultDelay = 2 * time.Second

	artifactContent = "Dummy APK content"
)

var _ build.Builder = (*Builder)(nil)

// Builder waits Delay and leaves a placeholder APK at the default artifact path.
type Builder struct {
	Delay time.Duration // zero value means no delay
}

func (b *Builder) Build(ctx context.Context, projectDir string) (*build.Outcome, error) {
	log := fmt.Sprintf(`> Task :app:preBuild UP-TO-DATE
> Task :app:preDebugBuild UP-TO-DATE
> Task :app:compileDebugJavaWithJavac
> Task :app:mergeDebugAssets
> Task :app:packageDebug
> Task :app:assembleDebug

BUILD SUCCESSFUL in %s
`, b.Delay.Round(time.Second))

	if b.Delay > 0 {
		timer := time.NewTimer(b.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return &build.Outcome{ExitCode: -1, Log: "> Task :app:preBuild UP-TO-DATE\n"}, nil
		case <-timer.C:
		}
	}

	artifactFile, err := filepath.Abs(filepath.Join(projectDir, build.DefaultArtifactPath))
	if err != nil {
		return nil, fmt.Errorf("buildstub.Builder: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(artifactFile), 0o777); err != nil {
		return nil, fmt.Errorf("buildstub.Builder: %w", err)
	}
	if err = os.WriteFile(artifactFile, []byte(artifactContent), 0o666); err != nil {
		return nil, fmt.Errorf("buildstub.Builder: %w", err)
	}

	return &build.Outcome{ExitCode: 0, Log: log, ArtifactFile: artifactFile}, nil
}
