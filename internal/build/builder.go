package build

import (
	"context"
	"path/filepath"
)

// DefaultArtifactPath is where a Gradle debug build of a Capacitor project
// leaves its APK, relative to the project directory.
var DefaultArtifactPath = filepath.Join("android", "app", "build", "outputs", "apk", "debug", "app-debug.apk")

// Outcome is what a build toolchain run left behind.
type Outcome struct {
	ExitCode     int    // -1 if the process didn't exit on its own
	Log          string // combined stdout and stderr
	ArtifactFile string // absolute; empty if the toolchain didn't produce one
}

// Builder runs an external build toolchain against a materialized project.
//
// Build returns an error only when the toolchain couldn't be run at all.
// A toolchain that ran and failed is reported through Outcome.
// Implementations must stop the toolchain when ctx is done.
type Builder interface {
	Build(ctx context.Context, projectDir string) (*Outcome, error)
}
