package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"livehouse/internal/app/events"
	"livehouse/internal/app/venues"
	"livehouse/internal/auth"
	"livehouse/internal/http/middleware"
	"livehouse/internal/httpapi"
	"livehouse/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			openCtx, cancel := a.runContext(ctx)
			read, write, err := a.openServeSessions(openCtx)
			cancel()
			if err != nil {
				return logFailure(err, "open store")
			}
			defer write.Close()
			if read != write {
				defer read.Close()
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			writer := newWriter(write, metrics.New(reg))

			api := httpapi.New(
				venues.New(read.store),
				events.New(read.store),
				writer,
				auth.NewTokenManager(a.cfg.Security.JWTSecret, a.cfg.Security.TokenTTL),
				metrics.Handler(reg),
				httpapi.WithIngestTimeout(a.cfg.Store.Timeout),
			)
			if a.cfg.Security.JWTSecret == "" {
				log.Warn().Msg("JWT_SECRET not set, ingest endpoint disabled")
			}

			logger := log.Logger
			handler := middleware.Recovery(logger)(
				middleware.RequestLogging(logger)(
					middleware.CORS(a.cfg.CORS.AllowedOrigins)(api.Routes()),
				),
			)

			srv := &http.Server{
				Addr:              a.cfg.Addr(),
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      a.cfg.Store.Timeout + 5*time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Msg("API listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return logFailure(err, "server error")
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
