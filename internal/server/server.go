package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/cors"
)

// New returns a new HTTP server.
// It should be started with http.Server's ListenAndServe.
func New(cfg *Config, log *slog.Logger, deps *Deps) *http.Server {
	addr := net.JoinHostPort(cfg.host(), strconv.Itoa(cfg.port()))

	subLogger := log.With("component", "server")
	subLogLogger := slog.NewLogLogger(subLogger.Handler(), slog.LevelError)

	h := newHandler(cfg, subLogger, deps)
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              addr,
		ErrorLog:          subLogLogger,
		Handler:           c.Handler(h),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
