package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/k11v/web2app/internal/apppg"
	"github.com/k11v/web2app/internal/apps3"
	"github.com/k11v/web2app/internal/build"
	"github.com/k11v/web2app/internal/build/buildamqp"
	"github.com/k11v/web2app/internal/build/builddocker"
	"github.com/k11v/web2app/internal/build/buildexec"
	"github.com/k11v/web2app/internal/build/buildfs"
	"github.com/k11v/web2app/internal/build/buildpg"
	"github.com/k11v/web2app/internal/build/builds3"
	"github.com/k11v/web2app/internal/build/buildstub"
	"github.com/k11v/web2app/internal/postgresutil"
	"github.com/k11v/web2app/internal/server"
)

// Services is the wired conversion pipeline with its optional backends.
type Services struct {
	Stager    *build.Stager
	Pipeline  *build.Pipeline
	Artifacts build.ArtifactStore
	History   *buildpg.Recorder // nil unless PostgreSQL is configured

	closers []func() error
}

// NewServices creates the working directories and connects the configured
// backends. The caller must call Close when done.
func NewServices(ctx context.Context, cfg *Config, log *slog.Logger) (_ *Services, err error) {
	s := &Services{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	for _, dir := range []string{cfg.Pipeline.uploadsDir(), cfg.Pipeline.tempDir()} {
		if err = os.MkdirAll(dir, 0o777); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if cfg.S3.Enabled() {
		client, err := apps3.NewClient(cfg.S3.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		s.Artifacts = &builds3.Store{Client: client, Bucket: cfg.S3.bucket(), Prefix: cfg.S3.Prefix}
	} else {
		if err = os.MkdirAll(cfg.Pipeline.outputDir(), 0o777); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		s.Artifacts = &buildfs.Store{Dir: cfg.Pipeline.outputDir()}
	}

	var recorder build.Recorder
	if cfg.Postgres.Enabled() {
		pool, err := postgresutil.NewPool(ctx, &cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		s.History = buildpg.NewRecorder(pool)
		recorder = s.History
	}

	var notifier build.Notifier
	if cfg.AMQP.Enabled() {
		client := buildamqp.NewClient(cfg.AMQP.ConnectionString, cfg.AMQP.Queue)
		s.closers = append(s.closers, client.Close)
		notifier = &buildamqp.Notifier{Publisher: client}
	}

	builder, err := newBuilder(&cfg.Builder, log)
	if err != nil {
		return nil, err
	}
	if d, ok := builder.(*builddocker.Builder); ok {
		s.closers = append(s.closers, d.Client.Close)
	}

	s.Stager = &build.Stager{
		UploadsDir:  cfg.Pipeline.uploadsDir(),
		MaxFileSize: cfg.Server.MaxUploadSize,
	}
	s.Pipeline = &build.Pipeline{
		Workspaces: &build.Workspaces{
			TempDir:    cfg.Pipeline.tempDir(),
			UploadsDir: cfg.Pipeline.uploadsDir(),
			Logger:     log.With("component", "workspaces"),
		},
		Extractor: &build.Extractor{MaxExtractedSize: cfg.Pipeline.MaxExtractedSize},
		AssetProcessor: &build.AssetProcessor{
			MaxImagePixels: cfg.Pipeline.MaxImagePixels,
			MaxImageSide:   cfg.Pipeline.MaxImageSide,
		},
		Builder:   builder,
		Publisher: &build.Publisher{Store: s.Artifacts},
		Recorder:  recorder,
		Notifier:  notifier,

		BuildTimeout: cfg.Pipeline.BuildTimeout,
		Logger:       log.With("component", "pipeline"),
	}

	return s, nil
}

func newBuilder(cfg *BuilderConfig, log *slog.Logger) (build.Builder, error) {
	log = log.With("component", "builder", "backend", cfg.backend())

	switch cfg.backend() {
	case BackendStub:
		return &buildstub.Builder{Delay: cfg.StubDelay}, nil
	case BackendExec:
		b := &buildexec.Builder{
			ArtifactPath: cfg.ArtifactPath,
			MaxLogSize:   cfg.MaxLogSize,
			Logger:       log,
		}
		if len(cfg.Command) > 0 {
			b.Steps = []buildexec.Step{{Args: cfg.Command}}
		}
		return b, nil
	case BackendDocker:
		client, err := builddocker.NewClient(cfg.DockerHost)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return &builddocker.Builder{
			Client:       client,
			Image:        cfg.Image,
			Cmd:          cfg.Command,
			ArtifactPath: cfg.ArtifactPath,
			NetworkMode:  cfg.Network,
			MemoryBytes:  cfg.MemoryBytes,
			NanoCPUs:     cfg.NanoCPUs,
			MaxLogSize:   cfg.MaxLogSize,
			Logger:       log,
		}, nil
	default:
		return nil, fmt.Errorf("app: unknown builder backend %q", cfg.Backend)
	}
}

// ServerDeps returns what the HTTP server needs from s.
func (s *Services) ServerDeps() *server.Deps {
	deps := &server.Deps{
		Stager:    s.Stager,
		Pipeline:  s.Pipeline,
		Artifacts: s.Artifacts,
	}
	if s.History != nil {
		deps.History = s.History
	}
	return deps
}

func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Setup applies PostgreSQL migrations and creates the S3 bucket
// for the backends that are configured.
func Setup(ctx context.Context, cfg *Config, log *slog.Logger) error {
	if cfg.Postgres.Enabled() {
		if err := apppg.Setup(cfg.Postgres.ConnectionString); err != nil {
			return fmt.Errorf("app: %w", err)
		}
		log.Info("set up postgres")
	}

	if cfg.S3.Enabled() {
		client, err := apps3.NewClient(cfg.S3.ConnectionString)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		if err = apps3.Setup(ctx, client, cfg.S3.bucket()); err != nil {
			return fmt.Errorf("app: %w", err)
		}
		log.Info("set up s3", "bucket", cfg.S3.bucket())
	}

	return nil
}
