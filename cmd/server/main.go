package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k11v/web2app/internal/app"
	"github.com/k11v/web2app/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	run := func() int {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := app.ParseConfig(os.Environ())
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}

		log := app.NewLogger(os.Stderr, cfg.Development)

		services, err := app.NewServices(ctx, cfg, log)
		if err != nil {
			log.Error("didn't create services", "err", err)
			return 1
		}
		defer func() {
			if closeErr := services.Close(); closeErr != nil {
				log.Warn("didn't close services", "err", closeErr)
			}
		}()

		srv := server.New(&cfg.Server, log, services.ServerDeps())

		serveErr := make(chan error, 1)
		go func() {
			log.Info("starting server", "addr", srv.Addr)
			serveErr <- srv.ListenAndServe()
		}()

		select {
		case err = <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				log.Error("didn't serve", "err", err)
				return 1
			}
			return 0
		case <-ctx.Done():
		}

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err = srv.Shutdown(shutdownCtx); err != nil {
			log.Error("didn't shut down server", "err", err)
			return 1
		}

		return 0
	}
	os.Exit(run())
}
