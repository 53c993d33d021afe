// Package builddocker runs the Android toolchain in a throwaway Docker container.
package builddocker

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/k11v/web2app/internal/build"
)

const (
	DefaultImage = "web2app-android"

	projectDir = "/user/project"
)

// DefaultCmd builds a debug APK from a Capacitor project in the working directory.
var DefaultCmd = []string{
	"sh",
	"-c",
	`
		set -e
		npm install --no-audit --no-fund
		npx cap add android
		npx cap sync android
		cd android
		exec ./gradlew assembleDebug --no-daemon
	`,
}

var _ build.Builder = (*Builder)(nil)

type Builder struct {
	Client       *client.Client // required
	Image        string         // zero value means DefaultImage
	Cmd          []string       // zero value means DefaultCmd
	ArtifactPath string         // relative to the project; zero value means build.DefaultArtifactPath
	NetworkMode  string         // zero value means the daemon's default; npm needs a network
	MemoryBytes  int64          // zero value means unlimited
	NanoCPUs     int64          // zero value means unlimited
	MaxLogSize   int            // zero value means build.DefaultMaxLogSize
	Logger       *slog.Logger   // optional
}

// NewClient connects to the Docker daemon configured by the environment.
// host overrides DOCKER_HOST when it isn't empty.
func NewClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("builddocker: %w", err)
	}
	return cli, nil
}

func (b *Builder) Build(ctx context.Context, projectDirOnHost string) (*build.Outcome, error) {
	log := build.NewLogBuffer(b.MaxLogSize)
	outcome := &build.Outcome{ExitCode: -1}
	cli := b.Client

	// Create build container.
	cont, err := cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:        b.image(),
			Cmd:          strslice.StrSlice(b.cmd()),
			WorkingDir:   projectDir,
			AttachStdout: true,
			AttachStderr: true,
		},
		&container.HostConfig{
			NetworkMode: container.NetworkMode(b.NetworkMode),
			CapDrop:     strslice.StrSlice{"ALL"},
			CapAdd:      strslice.StrSlice{"CAP_CHOWN", "CAP_DAC_OVERRIDE", "CAP_FSETID", "CAP_FOWNER", "CAP_MKNOD", "CAP_NET_RAW", "CAP_SETGID", "CAP_SETUID", "CAP_SETFCAP", "CAP_SETPCAP", "CAP_NET_BIND_SERVICE", "CAP_SYS_CHROOT", "CAP_KILL", "CAP_AUDIT_WRITE"},
			Resources: container.Resources{
				Memory:   b.MemoryBytes,
				NanoCPUs: b.NanoCPUs,
			},
			LogConfig: container.LogConfig{
				Type: "none",
			},
		},
		nil,
		nil,
		"",
	)
	if err != nil {
		return nil, fmt.Errorf("builddocker.Builder: %w", err)
	}
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := cli.ContainerRemove(removeCtx, cont.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			b.logger().Error("didn't remove container", "id", cont.ID, "err", err)
		}
	}()
	if len(cont.Warnings) > 0 {
		b.logger().Warn("created container with warnings", "id", cont.ID, "warnings", cont.Warnings)
	}

	// Copy the project into the container.
	projectTar, err := archive.TarWithOptions(projectDirOnHost, &archive.TarOptions{})
	if err != nil {
		return nil, fmt.Errorf("builddocker.Builder: %w", err)
	}
	defer projectTar.Close()
	err = cli.CopyToContainer(ctx, cont.ID, projectDir, projectTar, container.CopyToContainerOptions{})
	if err != nil {
		return nil, fmt.Errorf("builddocker.Builder: %w", err)
	}

	// Attach build container streams.
	conn, err := cli.ContainerAttach(ctx, cont.ID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("builddocker.Builder: %w", err)
	}
	defer conn.Close()

	// Start build container.
	if err = cli.ContainerStart(ctx, cont.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("builddocker.Builder: %w", err)
	}

	// Read build container stdout and stderr.
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(log, log, conn.Reader)
		copied <- err
	}()

	// Wait for build container to exit or ctx to be done.
	statusCh, errCh := cli.ContainerWait(ctx, cont.ID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("builddocker.Builder: %s", status.Error.Message)
		}
		outcome.ExitCode = int(status.StatusCode)
	case err = <-errCh:
		if ctx.Err() == nil {
			return nil, fmt.Errorf("builddocker.Builder: %w", err)
		}
		b.kill(ctx, cont.ID)
		outcome.Log = log.String()
		return outcome, nil
	case <-ctx.Done():
		b.kill(ctx, cont.ID)
		outcome.Log = log.String()
		return outcome, nil
	}

	// The stream ends shortly after the container exits.
	select {
	case err = <-copied:
		if err != nil && !errors.Is(err, io.EOF) {
			b.logger().Warn("didn't read container output", "id", cont.ID, "err", err)
		}
	case <-time.After(5 * time.Second):
		b.logger().Warn("didn't read container output", "id", cont.ID, "err", "timed out")
	}
	outcome.Log = log.String()
	if outcome.ExitCode != 0 {
		return outcome, nil
	}

	// Copy the artifact out of the container.
	artifactPath := b.artifactPath()
	artifactFile, err := filepath.Abs(filepath.Join(projectDirOnHost, filepath.FromSlash(artifactPath)))
	if err != nil {
		return nil, fmt.Errorf("builddocker.Builder: %w", err)
	}
	found, err := copyFromContainer(ctx, cli, cont.ID, path.Join(projectDir, artifactPath), artifactFile)
	if err != nil {
		return nil, fmt.Errorf("builddocker.Builder: %w", err)
	}
	if found {
		outcome.ArtifactFile = artifactFile
	}

	return outcome, nil
}

// copyFromContainer copies a single regular file from the container to dst.
// It reports false if the container doesn't have the file.
func copyFromContainer(ctx context.Context, cli *client.Client, containerID, src, dst string) (bool, error) {
	rc, _, err := cli.CopyFromContainer(ctx, containerID, src)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		if err = os.MkdirAll(filepath.Dir(dst), 0o777); err != nil {
			return false, err
		}
		f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
		if err != nil {
			return false, err
		}
		if _, err = io.Copy(f, tr); err != nil {
			_ = f.Close()
			return false, err
		}
		if err = f.Close(); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (b *Builder) kill(ctx context.Context, containerID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := b.Client.ContainerKill(ctx, containerID, "KILL"); err != nil && !client.IsErrNotFound(err) {
		b.logger().Error("didn't kill container", "id", containerID, "err", err)
	}
}

// artifactPath returns the slash-separated artifact path relative to the project.
func (b *Builder) artifactPath() string {
	if b.ArtifactPath == "" {
		return filepath.ToSlash(build.DefaultArtifactPath)
	}
	return b.ArtifactPath
}

func (b *Builder) image() string {
	if b.Image == "" {
		return DefaultImage
	}
	return b.Image
}

func (b *Builder) cmd() []string {
	if len(b.Cmd) == 0 {
		return DefaultCmd
	}
	return b.Cmd
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}
