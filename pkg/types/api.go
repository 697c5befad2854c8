package types

import "encoding/json"

// EventRequest is the payload of POST /v1/events.
type EventRequest struct {
	// Event name.
	// example: signup_completed
	Name string `json:"name" example:"signup_completed"`
	// Arbitrary JSON body. Objects are delivered as-is; any other value is
	// wrapped under the dispatcher root key.
	// example: {"plan":"pro"}
	Body json.RawMessage `json:"body,omitempty"`
	// If true, only technical sinks receive the event.
	// example: false
	Technical bool `json:"technical,omitempty" example:"false"`
}

// AcceptedResponse acknowledges a queued operation. Delivery happens later.
type AcceptedResponse struct {
	// Correlation id, also written to the server log.
	// example: 5b0c7f0e-4b7a-4c53-9d38-1f0c3c0d9a11
	ID string `json:"id" example:"5b0c7f0e-4b7a-4c53-9d38-1f0c3c0d9a11"`
}

// UserRequest is the payload of POST /v1/user. A null user_id clears it.
type UserRequest struct {
	// example: user-42
	UserID *string `json:"user_id" example:"user-42"`
}

// EnabledRequest toggles the dispatcher or a sink. Enabled is required.
type EnabledRequest struct {
	// example: true
	Enabled *bool `json:"enabled" example:"true"`
}

// EnabledResponse reports the dispatcher-wide flag.
type EnabledResponse struct {
	Enabled bool `json:"enabled"`
}

// SinkStatus describes one registered sink.
type SinkStatus struct {
	// example: eventd/pkg/sinks.Console
	Name      string `json:"name" example:"eventd/pkg/sinks.Console"`
	Technical bool   `json:"technical"`
	Enabled   bool   `json:"enabled"`
}

// SinksResponse wraps GET /v1/sinks.
type SinksResponse struct {
	Sinks []SinkStatus `json:"sinks"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
