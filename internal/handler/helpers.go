package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/civicdesk/civicdesk/internal/points"
)

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps points engine failures onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, points.ErrNotFound):
		writeError(w, http.StatusNotFound, "complaint not found")
	case errors.Is(err, points.ErrPermission):
		writeError(w, http.StatusForbidden, "not allowed")
	case points.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
