package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"famledger/internal/core"
	"famledger/internal/log"
)

const maxJSONBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes. ValidationFailed
// is checked first because it may wrap a NotFound cause.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a service error. Store failures are logged and their
// details withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		ctx := r.Context()
		fields := log.NewFields().WithPrincipal(string(core.PrincipalFromContext(ctx)))
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Operation failed", err, log.ComponentHTTP, op, fields)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}
