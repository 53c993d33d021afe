// Package buildexec runs the Android toolchain as local processes.
package buildexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/k11v/web2app/internal/build"
)

const DefaultWaitDelay = 5 * time.Second

var _ build.Builder = (*Builder)(nil)

// Step is one toolchain command. Dir is relative to the project directory.
type Step struct {
	Dir  string
	Args []string
}

// DefaultSteps install the bridge, generate the Android project
// and assemble a debug APK.
var DefaultSteps = []Step{
	{Args: []string{"npm", "install", "--no-audit", "--no-fund"}},
	{Args: []string{"npx", "cap", "add", "android"}},
	{Args: []string{"npx", "cap", "sync", "android"}},
	{Dir: "android", Args: []string{"./gradlew", "assembleDebug", "--no-daemon"}},
}

// Builder runs Steps one after another in the project directory
// and stops at the first one that fails.
type Builder struct {
	Steps        []Step        // zero value means DefaultSteps
	ArtifactPath string        // relative to the project; zero value means build.DefaultArtifactPath
	Env          []string      // appended to the current environment
	MaxLogSize   int           // zero value means build.DefaultMaxLogSize
	WaitDelay    time.Duration // zero value means DefaultWaitDelay
	Logger       *slog.Logger  // optional
}

func (b *Builder) Build(ctx context.Context, projectDir string) (*build.Outcome, error) {
	log := build.NewLogBuffer(b.MaxLogSize)
	outcome := &build.Outcome{ExitCode: -1}

	absProjectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("buildexec.Builder: %w", err)
	}

	for _, step := range b.steps() {
		if len(step.Args) == 0 {
			continue
		}
		if _, err = fmt.Fprintf(log, "$ %s\n", strings.Join(step.Args, " ")); err != nil {
			return nil, fmt.Errorf("buildexec.Builder: %w", err)
		}

		cmd := exec.CommandContext(ctx, step.Args[0], step.Args[1:]...)
		cmd.Dir = filepath.Join(absProjectDir, step.Dir)
		cmd.Env = append(os.Environ(), b.Env...)
		cmd.Stdout = log
		cmd.Stderr = log
		cmd.WaitDelay = b.waitDelay()
		setProcessGroup(cmd)

		start := time.Now()
		err = cmd.Run()
		b.logger().Debug("ran build step", "args", step.Args, "duration", time.Since(start), "err", err)
		if err != nil {
			outcome.Log = log.String()
			if ctx.Err() != nil {
				return outcome, nil
			}
			if exitErr := (*exec.ExitError)(nil); errors.As(err, &exitErr) {
				outcome.ExitCode = exitErr.ExitCode()
				return outcome, nil
			}
			return outcome, fmt.Errorf("buildexec.Builder: %w", err)
		}
	}

	outcome.ExitCode = 0
	outcome.Log = log.String()
	artifactFile := filepath.Join(absProjectDir, b.artifactPath())
	if info, err := os.Stat(artifactFile); err == nil && info.Mode().IsRegular() {
		outcome.ArtifactFile = artifactFile
	}
	return outcome, nil
}

func (b *Builder) steps() []Step {
	if len(b.Steps) == 0 {
		return DefaultSteps
	}
	return b.Steps
}

func (b *Builder) artifactPath() string {
	if b.ArtifactPath == "" {
		return build.DefaultArtifactPath
	}
	return filepath.FromSlash(b.ArtifactPath)
}

func (b *Builder) waitDelay() time.Duration {
	if b.WaitDelay <= 0 {
		return DefaultWaitDelay
	}
	return b.WaitDelay
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}
