package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"eventd/pkg/dispatcher"
	"eventd/pkg/events"
	"eventd/pkg/props"
	"eventd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *dispatcher.Dispatcher satisfies it.
type Service interface {
	Send(name events.Name, body any)
	SendTechnical(e events.TechnicalEvent)
	SetUserID(id *string)
	IsEnabled() bool
	SetEnabled(enabled bool)
	SetSinkEnabled(enabled bool, name events.SinkName)
	Sinks() []dispatcher.SinkInfo
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		origins, methods, headers := corsDefaults()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/enabled", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, types.EnabledResponse{Enabled: svc.IsEnabled()})
		})

		r.Get("/sinks", func(w http.ResponseWriter, r *http.Request) {
			infos := svc.Sinks()
			resp := types.SinksResponse{Sinks: make([]types.SinkStatus, 0, len(infos))}
			for _, s := range infos {
				resp.Sinks = append(resp.Sinks, types.SinkStatus{Name: s.Name.String(), Technical: s.Technical, Enabled: s.Enabled})
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireJSON)

			r.Post("/events", func(w http.ResponseWriter, r *http.Request) {
				var req types.EventRequest
				if !decodeBody(w, r, &req) {
					return
				}
				name := strings.TrimSpace(req.Name)
				if name == "" {
					reject(w, r, http.StatusBadRequest, "missing_name", "name is required")
					return
				}
				var body any = props.Properties{}
				if len(req.Body) > 0 {
					body = req.Body
				}
				id := uuid.NewString()
				op := "event"
				if req.Technical {
					op = "technical"
					svc.SendTechnical(events.NewTechnical(events.Name(name), body))
				} else {
					svc.Send(events.Name(name), body)
				}
				acceptedTotal.WithLabelValues(op).Inc()
				logAccepted(r, op, func(e *zerolog.Event) { e.Str("id", id).Str("event", name) })
				writeJSON(w, http.StatusAccepted, types.AcceptedResponse{ID: id})
			})

			r.Post("/user", func(w http.ResponseWriter, r *http.Request) {
				var req types.UserRequest
				if !decodeBody(w, r, &req) {
					return
				}
				svc.SetUserID(req.UserID)
				id := uuid.NewString()
				acceptedTotal.WithLabelValues("user").Inc()
				logAccepted(r, "user", func(e *zerolog.Event) { e.Str("id", id).Bool("cleared", req.UserID == nil) })
				writeJSON(w, http.StatusAccepted, types.AcceptedResponse{ID: id})
			})

			r.Put("/enabled", func(w http.ResponseWriter, r *http.Request) {
				enabled, ok := decodeEnabled(w, r)
				if !ok {
					return
				}
				svc.SetEnabled(enabled)
				acceptedTotal.WithLabelValues("enabled").Inc()
				logAccepted(r, "enabled", func(e *zerolog.Event) { e.Bool("enabled", enabled) })
				w.WriteHeader(http.StatusNoContent)
			})

			r.Put("/sinks/{name}/enabled", func(w http.ResponseWriter, r *http.Request) {
				name, err := sinkParam(r, svc)
				if err != nil {
					if errors.Is(err, errUnknownSink) {
						reject(w, r, http.StatusNotFound, "unknown_sink", err.Error())
						return
					}
					reject(w, r, http.StatusBadRequest, "bad_sink_name", "invalid sink name")
					return
				}
				enabled, ok := decodeEnabled(w, r)
				if !ok {
					return
				}
				svc.SetSinkEnabled(enabled, name)
				acceptedTotal.WithLabelValues("sink_enabled").Inc()
				logAccepted(r, "sink_enabled", func(e *zerolog.Event) { e.Str("sink", name.String()).Bool("enabled", enabled) })
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// requireJSON rejects bodies that are not declared as JSON and caps their size.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			reject(w, r, http.StatusUnsupportedMediaType, "content_type", "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reject(w, r, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return false
		}
		reject(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	return true
}

func decodeEnabled(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req types.EnabledRequest
	if !decodeBody(w, r, &req) {
		return false, false
	}
	if req.Enabled == nil {
		reject(w, r, http.StatusBadRequest, "missing_enabled", "enabled is required")
		return false, false
	}
	return *req.Enabled, true
}

// sinkParam resolves the {name} segment. Sink names usually contain slashes,
// so clients send them path-escaped. chi routes on RawPath when it is set, in
// which case the segment is still escaped; otherwise it was already decoded.
func sinkParam(r *http.Request, svc Service) (events.SinkName, error) {
	seg := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		var err error
		if seg, err = url.PathUnescape(seg); err != nil {
			return "", err
		}
	}
	name := events.SinkName(seg)
	for _, s := range svc.Sinks() {
		if s.Name == name {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", errUnknownSink, name)
}

func reject(w http.ResponseWriter, r *http.Request, status int, reason, msg string) {
	IncrementRejected(reason)
	logRejected(r, status, msg)
	writeJSONError(w, status, msg)
}
