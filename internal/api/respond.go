package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"turnover/internal/domain"

)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps domain errors onto HTTP codes. Forbidden is checked before Conflict
// because a forbidden error also matches ErrConflict.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	ev := s.log.Warn()
	if code == http.StatusInternalServerError {
		ev = s.log.Error()
		msg = "internal error"
	}
	ev.Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Int("status", code).Msg("Request failed")
	writeError(w, code, msg)
}

