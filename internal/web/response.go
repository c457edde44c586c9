package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/attr"
	"github.com/facet-db/facet/internal/hierarchy"
	"github.com/facet-db/facet/internal/serial"
	"github.com/facet-db/facet/internal/store"
)

// errorResponse is the standard JSON error envelope
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RenderJSON writes a JSON response with the given status
func RenderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// RenderValidationErrors writes the 422 envelope with the machine-name-keyed
// error map. The Errors type carries its own wire form.
func RenderValidationErrors(w http.ResponseWriter, verrs *attr.Errors) {
	RenderJSON(w, http.StatusUnprocessableEntity, verrs)
}

// RenderError maps an error to its JSON envelope following the error
// taxonomy: missing aggregates are 404, lost races and rejected moves are
// 409, anything else is a 500 with the detail kept server-side.
func RenderError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		RenderJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()})

	case errors.Is(err, serial.ErrExhausted):
		RenderJSON(w, http.StatusConflict, errorResponse{
			Error:   "conflict",
			Message: "could not allocate a serial value, retry the request",
		})

	case errors.Is(err, hierarchy.ErrCycle):
		RenderJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Message: err.Error()})

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		RenderJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "unavailable",
			Message: "request cancelled",
		})

	default:
		if logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
		RenderJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "an unexpected error occurred",
		})
	}
}

// RenderBadRequest writes a 400 envelope
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}

// RenderUnauthorized writes a 401 envelope
func RenderUnauthorized(w http.ResponseWriter, message string) {
	RenderJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: message})
}
