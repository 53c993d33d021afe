package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const DefaultBuildTimeout = 10 * time.Minute

// Pipeline takes a staged Request through extraction, validation,
// project generation, asset processing, the build and publishing.
// A Pipeline is safe for concurrent use; builds don't share any directory.
type Pipeline struct {
	Workspaces     *Workspaces     // required
	Extractor      *Extractor      // optional
	Materializer   *Materializer   // optional
	AssetProcessor *AssetProcessor // optional
	Builder        Builder         // required
	Publisher      *Publisher      // required
	Recorder       Recorder        // optional
	Notifier       Notifier        // optional
	BuildTimeout   time.Duration   // zero value means DefaultBuildTimeout
	Logger         *slog.Logger    // optional
}

// Run builds req and returns the published artifact name with the build log.
//
// Whatever the outcome, the build's staged uploads are removed before Run
// returns, and so is its workspace unless another build holds the id. A failed build is reported as an error matching one of
// the stage errors. Toolchain failures are *BuildError and carry the log.
func (p *Pipeline) Run(ctx context.Context, req *Request) (*Result, error) {
	log := p.logger().With("build_id", req.ID)
	recorder := p.recorder()

	err := recorder.Create(ctx, &RecorderCreateParams{Request: req})
	if err != nil {
		if errors.Is(err, ErrBuildIDTaken) {
			// The workspace belongs to the recorded build, the uploads to req.
			p.Workspaces.ReapUploads(req.ID)
			return nil, fmt.Errorf("build.Pipeline: %w", err)
		}
		log.Warn("didn't record build", "err", err)
	}

	ws, err := p.Workspaces.Create(req.ID)
	if err != nil {
		if errors.Is(err, ErrBuildIDTaken) {
			// The directories belong to another build.
			return nil, err
		}
		p.Workspaces.Reap(req.ID)
		p.finish(ctx, log, req, nil, err)
		return nil, err
	}
	defer p.Workspaces.Reap(req.ID)

	log.Info("started build", "app_name", req.AppName, "package_name", req.PackageName, "version_name", req.VersionName)
	start := time.Now()
	result, err := p.run(ctx, log, req, ws)
	log = log.With("duration", time.Since(start))
	p.finish(ctx, log, req, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, req *Request, ws *Workspace) (*Result, error) {
	p.transition(ctx, log, req, StateExtracting)
	err := p.extractor().Extract(ctx, &ExtractorExtractParams{
		SourceFile: req.SiteArchiveFile,
		DestDir:    ws.AssetsDir(),
	})
	if err != nil {
		return nil, err
	}

	p.transition(ctx, log, req, StateValidating)
	if err = Validate(ws.AssetsDir()); err != nil {
		return nil, err
	}

	p.transition(ctx, log, req, StateMaterializing)
	err = p.materializer().Materialize(&MaterializerMaterializeParams{
		Request:    req,
		AssetsDir:  ws.AssetsDir(),
		ProjectDir: ws.ProjectDir(),
	})
	if err != nil {
		return nil, err
	}

	p.transition(ctx, log, req, StateProcessingAssets)
	err = p.assetProcessor().Process(ctx, &AssetProcessorProcessParams{
		IconFile:   req.IconFile,
		SplashFile: req.SplashFile,
		ProjectDir: ws.ProjectDir(),
	})
	if err != nil {
		return nil, err
	}

	p.transition(ctx, log, req, StateBuilding)
	outcome, err := p.build(ctx, ws.ProjectDir())
	if err != nil {
		return nil, err
	}

	p.transition(ctx, log, req, StatePublishing)
	artifactName, err := p.Publisher.Publish(ctx, &PublisherPublishParams{
		Request:      req,
		ArtifactFile: outcome.ArtifactFile,
	})
	if err != nil {
		return nil, err
	}

	return &Result{ID: req.ID, ArtifactName: artifactName, Log: outcome.Log}, nil
}

// build runs the Builder under the build timeout and turns anything short
// of an exit code 0 with an artifact into an error.
func (p *Pipeline) build(ctx context.Context, projectDir string) (*Outcome, error) {
	timeout := p.buildTimeout()
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := p.Builder.Build(buildCtx, projectDir)
	if outcome == nil {
		outcome = &Outcome{ExitCode: -1}
	}

	switch {
	case ctx.Err() != nil:
		// The caller gave up. This isn't the toolchain's fault.
		return nil, fmt.Errorf("build.Pipeline: %w", ctx.Err())
	case errors.Is(buildCtx.Err(), context.DeadlineExceeded):
		return nil, &BuildError{
			Kind:     ErrBuildTimeout,
			ExitCode: outcome.ExitCode,
			Reason:   fmt.Sprintf("no result after %s", timeout),
			Log:      outcome.Log,
		}
	case err != nil:
		return nil, &BuildError{Kind: ErrBuildFailed, ExitCode: outcome.ExitCode, Reason: err.Error(), Log: outcome.Log}
	case outcome.ExitCode != 0:
		return nil, &BuildError{
			Kind:     ErrBuildFailed,
			ExitCode: outcome.ExitCode,
			Reason:   fmt.Sprintf("exit code %d", outcome.ExitCode),
			Log:      outcome.Log,
		}
	}

	if outcome.ArtifactFile == "" {
		return nil, &BuildError{Kind: ErrBuildFailed, Reason: "artifact not found", Log: outcome.Log}
	}
	if info, statErr := os.Stat(outcome.ArtifactFile); statErr != nil || !info.Mode().IsRegular() {
		return nil, &BuildError{Kind: ErrBuildFailed, Reason: "artifact not found", Log: outcome.Log}
	}

	return outcome, nil
}

func (p *Pipeline) transition(ctx context.Context, log *slog.Logger, req *Request, state State) {
	log.Debug("entered state", "state", state)
	err := p.recorder().UpdateState(ctx, &RecorderUpdateStateParams{ID: req.ID, State: state})
	if err != nil {
		log.Warn("didn't record build state", "state", state, "err", err)
	}
}

// finish records and announces the terminal state of a build.
// It uses a context detached from ctx so that a cancelled request still
// leaves a terminal state behind.
func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, req *Request, result *Result, buildErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	params := &RecorderFinishParams{ID: req.ID}
	if buildErr == nil {
		params.State = StateSucceeded
		params.ArtifactName = result.ArtifactName
		params.Log = result.Log
		log.Info("finished build", "state", params.State, "artifact_name", result.ArtifactName)
	} else {
		params.State = StateFailed
		params.ErrorKind = KindOf(buildErr)
		params.ErrorMessage = buildErr.Error()
		if buildError := (*BuildError)(nil); errors.As(buildErr, &buildError) {
			params.Log = buildError.Log
		}
		log.Error("finished build", "state", params.State, "kind", params.ErrorKind, "err", buildErr)
	}

	if err := p.recorder().Finish(ctx, params); err != nil {
		log.Warn("didn't record build result", "err", err)
	}

	event := &Event{
		ID:           req.ID,
		State:        params.State,
		ErrorKind:    params.ErrorKind,
		ErrorMessage: params.ErrorMessage,
		ArtifactName: params.ArtifactName,
		FinishedAt:   time.Now().UTC(),
	}
	if err := p.notifier().Notify(ctx, event); err != nil {
		log.Warn("didn't notify about build", "err", err)
	}
}

func (p *Pipeline) extractor() *Extractor {
	if p.Extractor == nil {
		return &Extractor{}
	}
	return p.Extractor
}

func (p *Pipeline) materializer() *Materializer {
	if p.Materializer == nil {
		return &Materializer{}
	}
	return p.Materializer
}

func (p *Pipeline) assetProcessor() *AssetProcessor {
	if p.AssetProcessor == nil {
		return &AssetProcessor{}
	}
	return p.AssetProcessor
}

func (p *Pipeline) recorder() Recorder {
	if p.Recorder == nil {
		return NopRecorder{}
	}
	return p.Recorder
}

func (p *Pipeline) notifier() Notifier {
	if p.Notifier == nil {
		return NopNotifier{}
	}
	return p.Notifier
}

func (p *Pipeline) buildTimeout() time.Duration {
	if p.BuildTimeout <= 0 {
		return DefaultBuildTimeout
	}
	return p.BuildTimeout
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
