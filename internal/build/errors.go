package build

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrExtraction        = errors.New("failed to extract web files")
	ErrContentValidation = errors.New("invalid web content")
	ErrMaterialization   = errors.New("failed to create project")
	ErrAssetProcessing   = errors.New("failed to process assets")
	ErrBuildFailed       = errors.New("build failed")
	ErrBuildTimeout      = errors.New("build timed out")
	ErrPublish           = errors.New("failed to publish artifact")
	ErrNotFound          = errors.New("not found")
	ErrBuildIDTaken      = errors.New("build id already taken")
)

// ValidationError is returned by Stager for user-correctable input problems.
// Its message is safe to show to the caller as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BuildError is returned when the build toolchain ran but didn't produce
// an artifact. Log holds whatever the toolchain printed.
type BuildError struct {
	Kind     error // ErrBuildFailed or ErrBuildTimeout
	ExitCode int   // -1 if the process didn't exit on its own
	Reason   string
	Log      string
}

func (e *BuildError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *BuildError) Unwrap() error {
	return e.Kind
}

// stageError tags err with kind so that errors.Is matches both.
func stageError(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// KindOf returns a short stable name for the kind of err.
// It is used in logs, metrics, build history and events.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrContentValidation):
		return "content_validation"
	case errors.Is(err, ErrMaterialization):
		return "materialization"
	case errors.Is(err, ErrAssetProcessing):
		return "asset_processing"
	case errors.Is(err, ErrBuildTimeout):
		return "build_timeout"
	case errors.Is(err, ErrBuildFailed):
		return "build_failed"
	case errors.Is(err, ErrPublish):
		return "publish"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBuildIDTaken):
		return "build_id_taken"
	default:
		return "internal"
	}
}
