package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"eventd/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", os.Getenv("EVENTD_ADDR"), "HTTP listen address, e.g. :8080")
	cmd.Flags().String("cors-origins", os.Getenv("EVENTD_CORS_ORIGINS"), "Comma-separated CORS origins; enables CORS when set")
	cmd.Flags().String("request-log", os.Getenv("EVENTD_REQUEST_LOG"), "Per-request log level (off, error, info, debug)")
	cmd.Flags().Duration("shutdown-timeout", 5*time.Second, "Grace period for in-flight requests on shutdown")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Addr = v
	}
	if v, _ := cmd.Flags().GetString("cors-origins"); v != "" {
		cfg.CORS.Enabled = true
		cfg.CORS.Origins = splitCSV(v)
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	a, err := startApp(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	if v, _ := cmd.Flags().GetString("request-log"); v != "" {
		httpapi.SetRequestLogLevel(v)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(a.dispatcher),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Int("sinks", len(a.built.Sinks)).Msg("eventd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			_ = a.stop()
			return err
		}
	case <-ctx.Done():
	}

	timeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := a.stop(); err != nil {
		return err
	}
	logger.Info().Msg("eventd stopped")
	return nil
}
