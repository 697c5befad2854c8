// Package dispatcher fans analytics events out to a fixed list of sinks.
//
// A Dispatcher owns one serial execution context. Every Send*, SetUserID and
// SetSinkEnabled call is queued there and returns immediately, so sinks see
// operations one at a time and in submission order no matter how many
// goroutines produce them. Bodies are canonicalized with package props on
// that context; a body that fails to serialize is logged and dropped and
// never reaches the caller as an error.
//
// Routing:
//
//   - Send, SendWith, SendEvent: every enabled sink.
//   - SendTechnical: enabled sinks whose IsTechnical is true.
//   - SendCustomizable: every enabled sink for which the event produces a
//     per-sink name and body.
//   - SetUserID: every sink, enabled or not.
//
// SetEnabled(false) switches the whole dispatcher off; sends made while it is
// off are discarded before anything is queued. Sink flags are read live on
// each delivery.
//
// Tests usually construct dispatchers with WithExecutor(Immediate{}) so that
// delivery happens before Send returns.
package dispatcher
