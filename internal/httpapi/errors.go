package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"eventd/pkg/types"
)

// errUnknownSink is returned when a toggle names no registered sink.
var errUnknownSink = errors.New("unknown sink")

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logRequestError(err, "failed to encode response")
	}
}
