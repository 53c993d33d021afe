package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/k11v/web2app/internal/build/builddocker"
	"github.com/k11v/web2app/internal/build/buildexec"
	"github.com/k11v/web2app/internal/build/buildfs"
	"github.com/k11v/web2app/internal/build/buildstub"
)

func TestNewServices(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()

	cfg := &Config{
		Pipeline: PipelineConfig{
			UploadsDir: filepath.Join(root, "uploads"),
			TempDir:    filepath.Join(root, "temp"),
			OutputDir:  filepath.Join(root, "output"),
		},
	}

	s, err := NewServices(ctx, cfg, log)
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}
	t.Cleanup(func() {
		if closeErr := s.Close(); closeErr != nil {
			t.Errorf("didn't want %q", closeErr)
		}
	})

	for _, dir := range []string{cfg.Pipeline.UploadsDir, cfg.Pipeline.TempDir, cfg.Pipeline.OutputDir} {
		if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
			t.Fatalf("got no directory %s, want one", dir)
		}
	}
	if _, ok := s.Artifacts.(*buildfs.Store); !ok {
		t.Fatalf("got %T artifact store, want *buildfs.Store", s.Artifacts)
	}
	if s.History != nil {
		t.Fatal("got history, want none")
	}
	if deps := s.ServerDeps(); deps.History != nil {
		t.Fatalf("got %T history, want nil", deps.History)
	}
	if _, ok := s.Pipeline.Builder.(*buildstub.Builder); !ok {
		t.Fatalf("got %T builder, want *buildstub.Builder", s.Pipeline.Builder)
	}
}

func TestNewBuilder(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("exec with a custom command", func(t *testing.T) {
		b, err := newBuilder(&BuilderConfig{Backend: BackendExec, Command: []string{"make", "apk"}}, log)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		execBuilder, ok := b.(*buildexec.Builder)
		if !ok {
			t.Fatalf("got %T, want *buildexec.Builder", b)
		}
		if got, want := len(execBuilder.Steps), 1; got != want {
			t.Fatalf("got %d steps, want %d", got, want)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := newBuilder(&BuilderConfig{Backend: "gradle-cloud"}, log)
		if err == nil {
			t.Fatal("got nil, want an error")
		}
	})
}

func TestNewServicesDockerBuilder(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()

	cfg := &Config{
		Pipeline: PipelineConfig{
			UploadsDir:   filepath.Join(root, "uploads"),
			TempDir:      filepath.Join(root, "temp"),
			OutputDir:    filepath.Join(root, "output"),
			MaxImageSide: 1024,
		},
		Builder: BuilderConfig{
			Backend:    BackendDocker,
			DockerHost: "unix://" + filepath.Join(root, "docker.sock"),
		},
	}

	s, err := NewServices(ctx, cfg, log)
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}

	if _, ok := s.Pipeline.Builder.(*builddocker.Builder); !ok {
		t.Fatalf("got %T builder, want *builddocker.Builder", s.Pipeline.Builder)
	}
	if got, want := len(s.closers), 1; got != want {
		t.Fatalf("got %d closers, want %d", got, want)
	}
	if got, want := s.Pipeline.AssetProcessor.MaxImageSide, 1024; got != want {
		t.Fatalf("got max image side %d, want %d", got, want)
	}

	if err = s.Close(); err != nil {
		t.Fatalf("didn't want %q", err)
	}
	if s.closers != nil {
		t.Fatalf("got %d closers after close, want none", len(s.closers))
	}
}
