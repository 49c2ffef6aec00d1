// Package api exposes the config store over HTTP/JSON.
//
// Each route maps to exactly one Store operation. Store errors are
// translated to status codes by statusFor; handlers hold no business logic.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/txn2/gamedna/pkg/api/docs"
	"github.com/txn2/gamedna/pkg/configstore"
)

const (
	pathParamID = "id"

	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 1 << 20
)

// Handler serves the config API.
type Handler struct {
	mux   *http.ServeMux
	store configstore.Store
}

// NewHandler creates an API handler backed by store.
func NewHandler(store configstore.Store) *Handler {
	h := &Handler{
		mux:   http.NewServeMux(),
		store: store,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all config API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /api/v1/configs", h.createConfig)
	h.mux.HandleFunc("GET /api/v1/configs", h.listConfigs)
	h.mux.HandleFunc("GET /api/v1/configs/{id}", h.getConfig)
	h.mux.HandleFunc("PUT /api/v1/configs/{id}", h.updateConfig)
	h.mux.HandleFunc("DELETE /api/v1/configs/{id}", h.deleteConfig)
	h.mux.HandleFunc("POST /api/v1/configs/{id}/publish", h.publishConfig)
	h.mux.HandleFunc("GET /api/v1/configs/{id}/versions", h.listVersions)
	h.mux.HandleFunc("POST /api/v1/configs/{id}/rollback", h.rollbackConfig)
	h.mux.HandleFunc("POST /api/v1/configs/{id}/clone", h.cloneConfig)

	h.mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.InstanceName(docs.SwaggerInfo.InstanceName()),
	))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps a store error to a status code and logs it.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "config request failed",
		"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeError(w, status, err.Error())
}

// statusFor maps store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, configstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, configstore.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, configstore.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, configstore.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// badRequest logs and writes a 400 response.
func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	slog.Debug("bad config request", "method", r.Method, "path", r.URL.Path, "error", msg)
	writeError(w, http.StatusBadRequest, msg)
}
