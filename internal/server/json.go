package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/playperu/weaver/internal/trivia"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

var statusByKind = []struct {
	err    error
	status int
}{
	{trivia.ErrUnauthenticated, http.StatusUnauthorized},
	{trivia.ErrForbidden, http.StatusForbidden},
	{trivia.ErrNotFound, http.StatusNotFound},
	{trivia.ErrInvalidState, http.StatusConflict},
	{trivia.ErrConflict, http.StatusConflict},
	{trivia.ErrValidation, http.StatusBadRequest},
	{trivia.ErrUnavailable, http.StatusServiceUnavailable},
	{trivia.ErrStorage, http.StatusInternalServerError},
}

func statusFor(err error) int {
	for _, k := range statusByKind {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// writeCommandError reports a rejected command. Errors without a known kind
// keep their text out of the response.
func writeCommandError(w http.ResponseWriter, err error) {
	code := trivia.Code(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	writeError(w, statusFor(err), code, msg)
}
