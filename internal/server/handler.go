package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/k11v/web2app/internal/build"
	"github.com/k11v/web2app/internal/multifile"
	_ "github.com/k11v/web2app/internal/server/docs"
)

const artifactContentType = "application/vnd.android.package-archive"

// History looks up recorded builds. It returns build.ErrNotFound
// for unknown IDs.
type History interface {
	Get(ctx context.Context, id uuid.UUID) (*build.Record, error)
}

// Deps are the services the handlers delegate to.
type Deps struct {
	Stager    *build.Stager       // required
	Pipeline  *build.Pipeline     // required
	Artifacts build.ArtifactStore // required
	History   History             // optional
}

type handler struct {
	mux         *http.ServeMux
	stager      *build.Stager
	pipeline    *build.Pipeline
	artifacts   build.ArtifactStore
	history     History
	tokens      *downloadTokens // nil when download links aren't signed
	metrics     *metrics
	maxBodySize int64
	log         *slog.Logger
}

func newHandler(cfg *Config, log *slog.Logger, deps *Deps) *handler {
	mux := http.NewServeMux()
	h := &handler{
		mux:         mux,
		stager:      deps.Stager,
		pipeline:    deps.Pipeline,
		artifacts:   deps.Artifacts,
		history:     deps.History,
		metrics:     newMetrics(),
		maxBodySize: cfg.maxBodySize(),
		log:         log,
	}
	if cfg.DownloadTokenSecret != "" {
		h.tokens = newDownloadTokens(cfg.DownloadTokenSecret, cfg.downloadTokenTTL())
	}

	if cfg.Development {
		mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}
	mux.Handle("GET /metrics", h.metrics.handler())
	mux.HandleFunc("GET /health", h.metrics.instrument("/health", h.GetHealth))

	mux.HandleFunc("POST /api/convert", h.metrics.instrument("/api/convert", h.Convert))
	mux.HandleFunc("GET /api/builds/{id}", h.metrics.instrument("/api/builds/{id}", h.GetBuild))
	mux.HandleFunc("GET /downloads/{fileName}", h.metrics.instrument("/downloads/{fileName}", h.Download))

	if cfg.PublicDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(cfg.PublicDir)))
	}

	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// GetHealth godoc
//
//	@Summary	Report that the server is up
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Router		/health [get]
func (h *handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

type convertResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DownloadURL string `json:"downloadUrl"`
	BuildLog    string `json:"buildLog"`
}

// Convert godoc
//
//	@Summary	Convert a web application into an APK
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		webFiles		formData	file	true	"Site archive (zip) or a single index.html"
//	@Param		appIcon			formData	file	false	"App icon"
//	@Param		splashScreen	formData	file	false	"Splash screen"
//	@Param		appName			formData	string	true	"App name"
//	@Param		packageName		formData	string	true	"Package name, e.g. com.example.app"
//	@Param		versionName		formData	string	false	"Version name"	default(1.0.0)
//	@Param		versionCode		formData	int		false	"Version code"	default(1)
//	@Success	200	{object}	convertResponse
//	@Failure	400	{object}	errorResponse
//	@Failure	500	{object}	errorResponse
//	@Router		/api/convert [post]
func (h *handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	req, err := h.stager.Stage(r.Context(), &build.StagerStageParams{Parts: multifile.NewMultipartReader(mr)})
	if err != nil {
		if validationErr := (*build.ValidationError)(nil); errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Message)
			return
		}
		h.log.Error("didn't stage upload", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Conversion failed", Message: err.Error()})
		return
	}

	start := time.Now()
	result, err := h.pipeline.Run(r.Context(), req)
	if err != nil {
		h.metrics.recordBuild(build.KindOf(err), time.Since(start))
		resp := errorResponse{Error: "Conversion failed", Message: err.Error()}
		if buildErr := (*build.BuildError)(nil); errors.As(err, &buildErr) {
			resp.BuildLog = buildErr.Log
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	h.metrics.recordBuild("succeeded", time.Since(start))

	downloadURL, err := h.downloadURL(result.ArtifactName)
	if err != nil {
		h.log.Error("didn't sign download link", "build_id", result.ID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Conversion failed", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		Success:     true,
		Message:     "Conversion completed successfully",
		DownloadURL: downloadURL,
		BuildLog:    result.Log,
	})
}

func (h *handler) downloadURL(name string) (string, error) {
	u := "/downloads/" + url.PathEscape(name)
	if h.tokens == nil {
		return u, nil
	}
	token, err := h.tokens.issue(name)
	if err != nil {
		return "", err
	}
	return u + "?" + url.Values{"token": {token}}.Encode(), nil
}

// Download godoc
//
//	@Summary	Download a built APK
//	@Produce	application/vnd.android.package-archive
//	@Param		fileName	path	string	true	"Artifact name"
//	@Param		token		query	string	false	"Download token"
//	@Success	200
//	@Failure	404	{object}	errorResponse
//	@Router		/downloads/{fileName} [get]
func (h *handler) Download(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("fileName")
	if !build.IsValidArtifactName(name) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if h.tokens != nil {
		if err := h.tokens.verify(r.URL.Query().Get("token"), name); err != nil {
			h.log.Debug("rejected download token", "file_name", name, "err", err)
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
	}

	rc, err := h.artifacts.Open(r.Context(), name)
	if err != nil {
		if !errors.Is(err, build.ErrNotFound) {
			h.log.Error("didn't open artifact", "file_name", name, "err", err)
		}
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", artifactContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err = io.Copy(w, rc); err != nil {
		h.log.Warn("didn't send artifact", "file_name", name, "err", err)
	}
}

type buildResponse struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	AppName      string    `json:"appName"`
	PackageName  string    `json:"packageName"`
	VersionName  string    `json:"versionName"`
	VersionCode  int       `json:"versionCode"`
	State        string    `json:"state"`
	Done         bool      `json:"done"`
	ErrorKind    string    `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	DownloadURL  string    `json:"downloadUrl,omitempty"`
	BuildLog     string    `json:"buildLog,omitempty"`
}

// GetBuild godoc
//
//	@Summary	Get a recorded build
//	@Produce	json
//	@Param		id	path		string	true	"Build ID"
//	@Success	200	{object}	buildResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/api/builds/{id} [get]
func (h *handler) GetBuild(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "Build not found")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Build not found")
		return
	}

	record, err := h.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, build.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Build not found")
			return
		}
		h.log.Error("didn't get build", "build_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := buildResponse{
		ID:           record.ID,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
		AppName:      record.AppName,
		PackageName:  record.PackageName,
		VersionName:  record.VersionName,
		VersionCode:  record.VersionCode,
		State:        string(record.State),
		Done:         record.State.Done(),
		ErrorKind:    record.ErrorKind,
		ErrorMessage: record.ErrorMessage,
		BuildLog:     record.Log,
	}
	if record.ArtifactName != "" {
		resp.DownloadURL, err = h.downloadURL(record.ArtifactName)
		if err != nil {
			h.log.Error("didn't sign download link", "build_id", id, "err", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
