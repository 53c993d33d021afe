package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/k11v/web2app/internal/build"
	"github.com/k11v/web2app/internal/build/buildfs"
	"github.com/k11v/web2app/internal/build/buildstub"
)

type testServer struct {
	handler    http.Handler
	uploadsDir string
	tempDir    string
}

func newTestServer(t *testing.T, cfg *Config, builder build.Builder, history History) *testServer {
	t.Helper()
	root := t.TempDir()
	uploadsDir := filepath.Join(root, "uploads")
	tempDir := filepath.Join(root, "temp")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := &buildfs.Store{Dir: filepath.Join(root, "output")}
	deps := &Deps{
		Stager: &build.Stager{UploadsDir: uploadsDir},
		Pipeline: &build.Pipeline{
			Workspaces: &build.Workspaces{TempDir: tempDir, UploadsDir: uploadsDir, Logger: log},
			Builder:    builder,
			Publisher:  &build.Publisher{Store: store},
			Logger:     log,
		},
		Artifacts: store,
		History:   history,
	}
	return &testServer{
		handler:    New(cfg, log, deps).Handler,
		uploadsDir: uploadsDir,
		tempDir:    tempDir,
	}
}

func (s *testServer) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

type formFile struct {
	FormName string
	FileName string
	Content  []byte
}

func newConvertRequest(t *testing.T, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("didn't want %q", err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.FormName, f.FileName)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if _, err = fw.Write(f.Content); err != nil {
			t.Fatalf("didn't want %q", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("didn't want %q", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func siteArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if _, err = io.WriteString(w, content); err != nil {
			t.Fatalf("didn't want %q", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("didn't want %q", err)
	}
	return buf.Bytes()
}

func validFields() map[string]string {
	return map[string]string{
		build.FormAppName:     "My App",
		build.FormPackageName: "com.example.myapp",
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("didn't want %q", err)
	}
	return v
}

type failingBuilder struct{}

func (failingBuilder) Build(context.Context, string) (*build.Outcome, error) {
	return &build.Outcome{ExitCode: 1, Log: "FAILURE: Build failed with an exception.\n"}, nil
}

type stubHistory map[uuid.UUID]*build.Record

func (h stubHistory) Get(_ context.Context, id uuid.UUID) (*build.Record, error) {
	record, ok := h[id]
	if !ok {
		return nil, build.ErrNotFound
	}
	return record, nil
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if got, want := w.Code, http.StatusOK; got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
	if got, want := decode[healthResponse](t, w).Status, "ok"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestConvert(t *testing.T) {
	t.Run("converts and serves the artifact", func(t *testing.T) {
		s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)
		r := newConvertRequest(t, validFields(), []formFile{
			{FormName: build.FormWebFiles, FileName: "site.zip", Content: siteArchive(t, map[string]string{"index.html": "<h1>Hi</h1>"})},
		})

		w := s.do(r)
		if got, want := w.Code, http.StatusOK; got != want {
			t.Fatalf("got %d, want %d: %s", got, want, w.Body)
		}
		resp := decode[convertResponse](t, w)
		if !resp.Success {
			t.Fatal("got success false, want true")
		}
		if got, want := resp.Message, "Conversion completed successfully"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := resp.DownloadURL, "/downloads/My_App_1.0.0.apk"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if !strings.Contains(resp.BuildLog, "BUILD SUCCESSFUL") {
			t.Fatalf("got build log %q, want it to contain BUILD SUCCESSFUL", resp.BuildLog)
		}

		w = s.do(httptest.NewRequest(http.MethodGet, resp.DownloadURL, nil))
		if got, want := w.Code, http.StatusOK; got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		if got, want := w.Header().Get("Content-Type"), "application/vnd.android.package-archive"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := w.Header().Get("Content-Disposition"), "attachment; filename=My_App_1.0.0.apk"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := w.Body.String(), "Dummy APK content"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	tests := []struct {
		name    string
		fields  map[string]string
		files   []formFile
		wantMsg string
	}{
		{
			name:    "missing app name",
			fields:  map[string]string{build.FormPackageName: "com.example.myapp"},
			files:   []formFile{{FormName: build.FormWebFiles, FileName: "index.html", Content: []byte("<h1>Hi</h1>")}},
			wantMsg: "Missing required fields",
		},
		{
			name:    "missing web files",
			fields:  validFields(),
			wantMsg: "Web files are required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)

			w := s.do(newConvertRequest(t, tt.fields, tt.files))
			if got, want := w.Code, http.StatusBadRequest; got != want {
				t.Fatalf("got %d, want %d", got, want)
			}
			if got, want := decode[errorResponse](t, w).Error, tt.wantMsg; got != want {
				t.Fatalf("got %q, want %q", got, want)
			}
		})
	}

	t.Run("rejects a body that isn't multipart", func(t *testing.T) {
		s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)
		r := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(`{"appName":"My App"}`))
		r.Header.Set("Content-Type", "application/json")

		w := s.do(r)
		if got, want := w.Code, http.StatusBadRequest; got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		if got, want := decode[errorResponse](t, w).Error, "Missing required fields"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	t.Run("reports a site without index.html", func(t *testing.T) {
		s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)
		r := newConvertRequest(t, validFields(), []formFile{
			{FormName: build.FormWebFiles, FileName: "site.zip", Content: siteArchive(t, map[string]string{"about.html": "<h1>About</h1>"})},
		})

		w := s.do(r)
		if got, want := w.Code, http.StatusInternalServerError; got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		resp := decode[errorResponse](t, w)
		if got, want := resp.Error, "Conversion failed"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if !strings.Contains(resp.Message, "index.html not found") {
			t.Fatalf("got message %q, want it to mention index.html", resp.Message)
		}
		if resp.BuildLog != "" {
			t.Fatalf("got build log %q, want empty", resp.BuildLog)
		}
	})

	t.Run("reports a failed build with its log", func(t *testing.T) {
		s := newTestServer(t, &Config{}, failingBuilder{}, nil)
		r := newConvertRequest(t, validFields(), []formFile{
			{FormName: build.FormWebFiles, FileName: "index.html", Content: []byte("<h1>Hi</h1>")},
		})

		w := s.do(r)
		if got, want := w.Code, http.StatusInternalServerError; got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		resp := decode[errorResponse](t, w)
		if got, want := resp.Message, "build failed: exit code 1"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if !strings.Contains(resp.BuildLog, "FAILURE") {
			t.Fatalf("got build log %q, want it to contain FAILURE", resp.BuildLog)
		}

		w = s.do(httptest.NewRequest(http.MethodGet, "/downloads/My_App_1.0.0.apk", nil))
		if got, want := w.Code, http.StatusNotFound; got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	})
}

func TestDownload(t *testing.T) {
	s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)

	for _, target := range []string{
		"/downloads/Missing_1.0.0.apk",
		"/downloads/.hidden",
		"/downloads/..%5Csecret",
	} {
		t.Run(target, func(t *testing.T) {
			w := s.do(httptest.NewRequest(http.MethodGet, target, nil))
			if got, want := w.Code, http.StatusNotFound; got != want {
				t.Fatalf("got %d, want %d", got, want)
			}
			if got, want := decode[errorResponse](t, w).Error, "File not found"; got != want {
				t.Fatalf("got %q, want %q", got, want)
			}
		})
	}
}

func TestDownloadToken(t *testing.T) {
	s := newTestServer(t, &Config{DownloadTokenSecret: "secret", DownloadTokenTTL: time.Hour}, &buildstub.Builder{}, nil)
	r := newConvertRequest(t, validFields(), []formFile{
		{FormName: build.FormWebFiles, FileName: "index.html", Content: []byte("<h1>Hi</h1>")},
	})

	w := s.do(r)
	if got, want := w.Code, http.StatusOK; got != want {
		t.Fatalf("got %d, want %d: %s", got, want, w.Body)
	}
	downloadURL := decode[convertResponse](t, w).DownloadURL
	if !strings.HasPrefix(downloadURL, "/downloads/My_App_1.0.0.apk?token=") {
		t.Fatalf("got %q, want a signed download link", downloadURL)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/downloads/My_App_1.0.0.apk", nil))
	if got, want := w.Code, http.StatusNotFound; got != want {
		t.Fatalf("got %d, want %d", got, want)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, downloadURL, nil))
	if got, want := w.Code, http.StatusOK; got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestGetBuild(t *testing.T) {
	id := uuid.New()
	history := stubHistory{
		id: {
			ID:           id,
			AppName:      "My App",
			PackageName:  "com.example.myapp",
			VersionName:  "1.0.0",
			VersionCode:  1,
			State:        build.StateSucceeded,
			ArtifactName: "My_App_1.0.0.apk",
		},
	}

	t.Run("returns a recorded build", func(t *testing.T) {
		s := newTestServer(t, &Config{}, &buildstub.Builder{}, history)

		w := s.do(httptest.NewRequest(http.MethodGet, "/api/builds/"+id.String(), nil))
		if got, want := w.Code, http.StatusOK; got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
		resp := decode[buildResponse](t, w)
		if got, want := resp.State, "succeeded"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if !resp.Done {
			t.Fatal("got done false, want true")
		}
		if got, want := resp.DownloadURL, "/downloads/My_App_1.0.0.apk"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	tests := []struct {
		name    string
		history History
		target  string
	}{
		{name: "unknown id", history: history, target: "/api/builds/" + uuid.NewString()},
		{name: "invalid id", history: history, target: "/api/builds/nope"},
		{name: "history disabled", history: nil, target: "/api/builds/" + id.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &Config{}, &buildstub.Builder{}, tt.history)

			w := s.do(httptest.NewRequest(http.MethodGet, tt.target, nil))
			if got, want := w.Code, http.StatusNotFound; got != want {
				t.Fatalf("got %d, want %d", got, want)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)
	s.do(newConvertRequest(t, validFields(), []formFile{
		{FormName: build.FormWebFiles, FileName: "index.html", Content: []byte("<h1>Hi</h1>")},
	}))

	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if got, want := w.Code, http.StatusOK; got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
	body := w.Body.String()
	for _, want := range []string{
		`web2app_builds_total{outcome="succeeded"} 1`,
		`web2app_http_requests_total{method="POST",route="/api/convert",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("got metrics without %q", want)
		}
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, &Config{}, &buildstub.Builder{}, nil)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://example.com")

	w := s.do(r)
	if got, want := w.Header().Get("Access-Control-Allow-Origin"), "*"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
