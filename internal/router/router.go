package router

import (
	"encoding/json"
	"net/http"
	"time"

	"RestJSON/internal/auth"
	"RestJSON/internal/config"
	"RestJSON/internal/handler"
	"RestJSON/internal/logger"
	"RestJSON/internal/metrics"
	"RestJSON/internal/rescue"

	"github.com/google/uuid"
)

// Route is one REST route served for every resource.
type Route struct {
	Method string
	Path   string
	Action string
}

func (rt Route) Pattern() string { return rt.Method + " " + rt.Path }

// Routes lists the resource routes under prefix. Custom query actions are
// reached through the show route.
func Routes(prefix string) []Route {
	collection := prefix + "/{resource}"
	member := collection + "/{id}"
	return []Route{
		{http.MethodGet, collection, "index"},
		{http.MethodGet, collection + "/new", "new"},
		{http.MethodGet, member, "show"},
		{http.MethodGet, member + "/edit", "edit"},
		{http.MethodPost, collection, "create"},
		{http.MethodPut, member, "update"},
		{http.MethodPatch, member, "update"},
		{http.MethodDelete, member, "destroy"},
	}
}

// InitRoutes builds the API handler. jwt may be nil when authentication
// is disabled.
func InitRoutes(cfg *config.Config, h *handler.ResourceHandler, jwt *auth.JWTValidator) http.Handler {
	actions := map[string]handler.HandlerFunc{
		"index":   h.Index,
		"new":     h.New,
		"show":    h.Member,
		"edit":    h.Edit,
		"create":  h.Create,
		"update":  h.Update,
		"destroy": h.Destroy,
	}

	routes := Routes(cfg.APIPrefix)
	api := http.NewServeMux()
	for _, rt := range routes {
		api.HandleFunc(rt.Pattern(), withErrors(actions[rt.Action]))
	}
	var apiHandler http.Handler = api
	if jwt != nil {
		apiHandler = auth.Middleware(jwt)(apiHandler)
	}

	root := http.NewServeMux()
	root.Handle("GET /metrics", metrics.Handler())
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Handle("/", newCORSPolicy(cfg.CORS, routes).wrap(apiHandler))

	return withRequestID(withLogging(withRecover(root)))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withErrors renders errors the resource did not handle as a bare 500.
func withErrors(fn handler.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		logger.Error("unhandled_error", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": w.Header().Get(requestIDHeader),
			"kind":       rescue.KindOf(err).Name(),
			"error":      err.Error(),
			"trace":      rescue.Trace(err),
		})
		writeInternalError(w)
	}
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic", map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  rec,
				})
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(rescue.Payload{
		Status: rescue.StatusName(http.StatusInternalServerError),
		Error:  "internal server error",
	})
}

const requestIDHeader = "X-Request-Id"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		level := "info"
		if sw.status >= 500 {
			level = "error"
		} else if sw.status >= 400 {
			level = "warn"
		}
		fields := map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sw.status,
			"latency_ms": time.Since(started).Milliseconds(),
			"request_id": w.Header().Get(requestIDHeader),
		}
		switch level {
		case "error":
			logger.Error("response", fields)
		case "warn":
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	})
}
