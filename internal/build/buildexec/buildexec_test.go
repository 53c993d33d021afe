package buildexec

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/k11v/web2app/internal/build"
)

func TestBuilderBuild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping on windows")
	}
	ctx := context.Background()
	artifactPath := filepath.ToSlash(build.DefaultArtifactPath)

	t.Run("runs the steps and finds the artifact", func(t *testing.T) {
		projectDir := t.TempDir()
		builder := &Builder{Steps: []Step{
			{Args: []string{"sh", "-c", "echo installing"}},
			{Args: []string{"sh", "-c", "mkdir -p $(dirname " + artifactPath + ") && echo apk > " + artifactPath}},
		}}

		outcome, err := builder.Build(ctx, projectDir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := outcome.ExitCode, 0; got != want {
			t.Errorf("got %d ExitCode, want %d", got, want)
		}
		if got, want := outcome.ArtifactFile, filepath.Join(projectDir, build.DefaultArtifactPath); got != want {
			t.Errorf("got %q ArtifactFile, want %q", got, want)
		}
		if !strings.Contains(outcome.Log, "$ sh -c echo installing\ninstalling\n") {
			t.Errorf("got %q Log", outcome.Log)
		}
	})

	t.Run("stops at the first failing step", func(t *testing.T) {
		projectDir := t.TempDir()
		builder := &Builder{Steps: []Step{
			{Args: []string{"sh", "-c", "echo broken >&2; exit 3"}},
			{Args: []string{"sh", "-c", "echo unreachable"}},
		}}

		outcome, err := builder.Build(ctx, projectDir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := outcome.ExitCode, 3; got != want {
			t.Errorf("got %d ExitCode, want %d", got, want)
		}
		if got := outcome.ArtifactFile; got != "" {
			t.Errorf("got %q ArtifactFile, want empty", got)
		}
		if !strings.Contains(outcome.Log, "broken") || strings.Contains(outcome.Log, "unreachable") {
			t.Errorf("got %q Log", outcome.Log)
		}
	})

	t.Run("runs steps in their directory", func(t *testing.T) {
		projectDir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(projectDir, "android"), 0o777); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		builder := &Builder{Steps: []Step{{Dir: "android", Args: []string{"sh", "-c", "pwd"}}}}

		outcome, err := builder.Build(ctx, projectDir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if !strings.Contains(outcome.Log, string(filepath.Separator)+"android\n") {
			t.Errorf("got %q Log", outcome.Log)
		}
	})

	t.Run("stops the toolchain when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		builder := &Builder{
			Steps:     []Step{{Args: []string{"sh", "-c", "sleep 30 & sleep 30"}}},
			WaitDelay: time.Second,
		}

		start := time.Now()
		outcome, err := builder.Build(ctx, t.TempDir())
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := outcome.ExitCode, -1; got != want {
			t.Errorf("got %d ExitCode, want %d", got, want)
		}
		if elapsed := time.Since(start); elapsed > 10*time.Second {
			t.Errorf("got %s, want the build stopped promptly", elapsed)
		}
	})

	t.Run("fails when the toolchain is missing", func(t *testing.T) {
		builder := &Builder{Steps: []Step{{Args: []string{"web2app-missing-toolchain"}}}}

		if _, err := builder.Build(ctx, t.TempDir()); err == nil {
			t.Fatal("got nil, want an error")
		}
	})
}
