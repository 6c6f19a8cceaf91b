package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/coldreach/coldreach-backend/internal/errors"
)

// workspaceHeader carries the tenant id. A real deployment derives the
// tenant from the auth token; the header keeps the API usable until the
// auth gateway fronts this service.
const workspaceHeader = "X-Workspace-ID"

func workspaceID(r *http.Request) string {
	return r.Header.Get(workspaceHeader)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP statuses. Unknown errors are
// 500s with the message passed through; this is an internal API.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var transition *apperrors.ErrInvalidTransition
	switch {
	case apperrors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.As(err, &transition):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrNoSteps),
		errors.Is(err, apperrors.ErrStepCountMismatch):
		status = http.StatusUnprocessableEntity
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
