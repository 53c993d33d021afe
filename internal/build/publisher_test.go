package build

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		s    string
		want string
	}{
		{s: "My App!", want: "My_App_"},
		{s: "app", want: "app"},
		{s: "Привет", want: "______"},
		{s: "a😀b", want: "a__b"},
		{s: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got := SanitizeName(tt.s)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if again := SanitizeName(got); again != got {
				t.Errorf("got %q after sanitizing twice, want %q", again, got)
			}
		})
	}
}

func TestArtifactName(t *testing.T) {
	if got, want := ArtifactName("My App!", "2.1"), "My_App__2.1.apk"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIsValidArtifactName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "My_App_1.0.0.apk", want: true},
		{name: "", want: false},
		{name: "..", want: false},
		{name: ".hidden.apk", want: false},
		{name: "../etc/passwd", want: false},
		{name: `..\boot.ini`, want: false},
		{name: "a/b.apk", want: false},
		{name: "a\x00.apk", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidArtifactName(tt.name); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublisherPublish(t *testing.T) {
	ctx := context.Background()
	req := &Request{AppName: "My App!", VersionName: "2.1"}

	t.Run("publishes under the artifact name", func(t *testing.T) {
		artifactFile := filepath.Join(t.TempDir(), "app-debug.apk")
		if err := os.WriteFile(artifactFile, []byte("apk"), 0o666); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		store := &StubStore{}

		publisher := &Publisher{Store: store}
		name, err := publisher.Publish(ctx, &PublisherPublishParams{Request: req, ArtifactFile: artifactFile})
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := name, "My_App__2.1.apk"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}

		rc, err := store.Open(ctx, name)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := string(content), "apk"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("fails without an artifact", func(t *testing.T) {
		publisher := &Publisher{Store: &StubStore{}}
		_, err := publisher.Publish(ctx, &PublisherPublishParams{Request: req, ArtifactFile: filepath.Join(t.TempDir(), "missing.apk")})
		if !errors.Is(err, ErrPublish) {
			t.Fatalf("got %v, want %v", err, ErrPublish)
		}
	})
}
