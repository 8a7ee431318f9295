package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leafsii/appconfig/pkg/appconfig"
)

const maxBodyBytes = 1 << 20

// Store is the part of *appconfig.Config the admin API serves.
type Store interface {
	Register(ctx context.Context, name string, value any, opts ...appconfig.RegisterOption) error
	GetRegistration(ctx context.Context, name string) (appconfig.Metadata, bool, error)
	Set(ctx context.Context, name string, value any) error
	GetOr(ctx context.Context, name string, def any) (any, error)
	Delete(ctx context.Context, name string) error
	Has(ctx context.Context, name string) (bool, error)
	Getenv(name, def string) (string, error)
	Setenv(name, value string) error
	DeleteEnv(name string) error
	EnvHas(name string) (bool, error)
	Ping(ctx context.Context) error
	Stats(ctx context.Context) appconfig.Stats
}

var _ Store = (*appconfig.Config)(nil)

type Handler struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewHandler(store Store, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "OK", Remote: h.remoteState(r.Context())})
}

// Readyz fails while the configured remote store is unreachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "READY", Remote: h.remoteState(r.Context())}
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warnw("Remote store not ready", "error", err)
		resp.Status = "NOT_READY"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) remoteState(ctx context.Context) string {
	if h.store.Stats(ctx).Remote {
		return "configured"
	}
	return "disabled"
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats(r.Context()))
}

func (h *Handler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.store.Register(r.Context(), name, req.Value, req.options()...); err != nil {
		h.writeStoreError(w, err)
		return
	}

	meta, _, err := h.store.GetRegistration(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRegistrationResponse(name, meta))
}

// GetItem returns the item value. The optional ?default= query parameter is
// returned for absent or falsy values; without it those answer 404.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var def any
	query := r.URL.Query()
	if query.Has("default") {
		def = query.Get("default")
	}

	value, err := h.store.GetOr(r.Context(), name, def)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if value == nil {
		writeError(h.logger, w, http.StatusNotFound, "not_found", "item '"+name+"' has no value")
		return
	}
	writeJSON(w, http.StatusOK, ValueResponse{Name: name, Value: value})
}

func (h *Handler) SetItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.store.Set(r.Context(), name, req.Value); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ItemExists(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ok, err := h.store.Has(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Name: name, Exists: ok})
}

func (h *Handler) ItemRegistration(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	meta, ok, err := h.store.GetRegistration(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !ok {
		writeError(h.logger, w, http.StatusNotFound, "not_found", "item '"+name+"' is not registered")
		return
	}
	writeJSON(w, http.StatusOK, newRegistrationResponse(name, meta))
}

func (h *Handler) GetEnv(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	query := r.URL.Query()

	if !query.Has("default") {
		ok, err := h.store.EnvHas(name)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		if !ok {
			h.writeStoreError(w, appconfig.ErrEnvNotFound)
			return
		}
	}

	value, err := h.store.Getenv(name, query.Get("default"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValueResponse{Name: name, Value: value})
}

func (h *Handler) SetEnv(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ValueRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, ok := req.Value.(string)
	if !ok && req.Value != nil {
		writeError(h.logger, w, http.StatusBadRequest, "usage", "environment values must be strings")
		return
	}
	if err := h.store.Setenv(name, value); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteEnv(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEnv(chi.URLParam(r, "name")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EnvExists(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ok, err := h.store.EnvHas(name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Name: name, Exists: ok})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Numbers decode as float64 so a stored 0 reads back as falsy like any
	// other zero.
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_body", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps error kinds onto HTTP status codes. Errors raised by the
// remote store itself have no kind and surface as 502.
func statusFor(kind appconfig.Kind) int {
	switch kind {
	case appconfig.KindUsage, appconfig.KindValue:
		return http.StatusBadRequest
	case appconfig.KindConflict:
		return http.StatusConflict
	case appconfig.KindNotFound:
		return http.StatusNotFound
	case appconfig.KindType:
		return http.StatusUnprocessableEntity
	case appconfig.KindConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	kind := appconfig.KindOf(err)
	writeError(h.logger, w, statusFor(kind), kind.String(), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(logger *zap.SugaredLogger, w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		logger.Errorw("API error", "status", status, "code", code, "message", message)
	} else {
		logger.Debugw("API error", "status", status, "code", code, "message", message)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
