package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"eventd/internal/common/fsutil"
	"eventd/pkg/dispatcher"
	"eventd/pkg/events"
	"eventd/pkg/sinks"
)

// Built is the result of Build: the sinks in config order and whatever has
// to be closed on shutdown.
type Built struct {
	Sinks   []dispatcher.Sink
	closers []io.Closer
}

// Close closes file-backed sinks. It returns every close error, joined.
func (b *Built) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Build instantiates the configured sinks. Console sinks log through logger;
// prometheus sinks register on reg.
func (c Config) Build(logger zerolog.Logger, reg prometheus.Registerer) (*Built, error) {
	b := &Built{}
	for i, sc := range c.Sinks {
		opts := sinks.Options{Name: events.SinkName(sc.Name), Technical: sc.Technical, Disabled: sc.Disabled}
		var s dispatcher.Sink
		switch sc.Type {
		case SinkConsole:
			s = sinks.NewConsole(logger, sc.IsPretty(), opts)
		case SinkMemory:
			s = sinks.NewMemoryWith(opts)
		case SinkPrometheus:
			p, err := sinks.NewPrometheus(reg, opts)
			if err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("sinks[%d]: %w", i, err)
			}
			s = p
		case SinkJSONL:
			path, err := fsutil.ExpandHome(sc.Path)
			if err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("sinks[%d]: %w", i, err)
			}
			j, err := sinks.NewJSONL(path, opts)
			if err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("sinks[%d]: %w", i, err)
			}
			b.closers = append(b.closers, j)
			s = j
		default:
			_ = b.Close()
			return nil, fmt.Errorf("sinks[%d]: unknown sink type %q", i, sc.Type)
		}
		b.Sinks = append(b.Sinks, s)
	}
	return b, nil
}
