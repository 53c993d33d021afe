package build

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
)

var _ Builder = (*StubBuilder)(nil)

// StubBuilder writes Artifact to the default artifact path
// unless ExitCode is non-zero or Hang is set.
type StubBuilder struct {
	ExitCode int
	Artifact []byte
	Log      string
	Hang     bool // wait for ctx to be done
	NoOutput bool // exit 0 without an artifact

	Calls      atomic.Int32
	ProjectDir atomic.Value // string of the last call
}

func (b *StubBuilder) Build(ctx context.Context, projectDir string) (*Outcome, error) {
	b.Calls.Add(1)
	b.ProjectDir.Store(projectDir)

	if b.Hang {
		<-ctx.Done()
		return &Outcome{ExitCode: -1, Log: b.Log}, nil
	}
	if b.ExitCode != 0 || b.NoOutput {
		return &Outcome{ExitCode: b.ExitCode, Log: b.Log}, nil
	}

	artifactFile := filepath.Join(projectDir, DefaultArtifactPath)
	if err := os.MkdirAll(filepath.Dir(artifactFile), 0o777); err != nil {
		return nil, err
	}
	if err := os.WriteFile(artifactFile, b.Artifact, 0o666); err != nil {
		return nil, err
	}
	return &Outcome{ExitCode: 0, Log: b.Log, ArtifactFile: artifactFile}, nil
}
