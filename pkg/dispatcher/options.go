package dispatcher

import "github.com/rs/zerolog"

// Option configures a Dispatcher.
type Option func(*options)

type options struct {
	executor  Executor
	queueSize int
	logger    *zerolog.Logger
	onError   func(error)
	disabled  bool
}

// WithExecutor injects the execution context. The dispatcher does not close
// an injected executor.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.executor = e }
}

// WithQueueSize bounds the default serial queue. Zero or less means
// unbounded. Ignored when WithExecutor is given.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithLogger sets the logger used for dropped events and sink panics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithErrorHandler registers a callback for events dropped on the worker.
// It runs on the dispatcher's execution context.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithDisabled constructs the dispatcher with the global flag off.
func WithDisabled() Option {
	return func(o *options) { o.disabled = true }
}
