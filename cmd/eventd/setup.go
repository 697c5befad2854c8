package main

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"eventd/internal/config"
	"eventd/pkg/dispatcher"
	"eventd/pkg/props"
)

// loadConfig reads --config (or the built-in default), applies flag
// overrides and validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the zerolog default.
func newLogger(cfg config.Config, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "eventd").Logger()
	log.Logger = logger
	return logger
}

// app is a started dispatcher plus the sinks it owns.
type app struct {
	dispatcher *dispatcher.Dispatcher
	built      *config.Built
	logger     zerolog.Logger
}

func startApp(cfg config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*app, error) {
	props.SetRootKey(cfg.RootKey)
	built, err := cfg.Build(logger.With().Str("component", "sink").Logger(), reg)
	if err != nil {
		return nil, err
	}
	opts := []dispatcher.Option{
		dispatcher.WithQueueSize(cfg.QueueSize),
		dispatcher.WithLogger(logger),
	}
	if cfg.Disabled {
		opts = append(opts, dispatcher.WithDisabled())
	}
	d, err := dispatcher.New(built.Sinks, opts...)
	if err != nil {
		_ = built.Close()
		return nil, err
	}
	if len(built.Sinks) == 0 {
		logger.Warn().Msg("no sinks configured, events will be discarded")
	}
	return &app{dispatcher: d, built: built, logger: logger}, nil
}

// stop drains queued work, then closes file-backed sinks.
func (a *app) stop() error {
	a.dispatcher.Close()
	if err := a.built.Close(); err != nil {
		a.logger.Error().Err(err).Msg("closing sinks")
		return err
	}
	return nil
}
