package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alem-hub/engagement-agent/internal/domain/shared"
	"github.com/alem-hub/engagement-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// InternalErrorMessage is the only message a client sees for unexpected errors.
const InternalErrorMessage = "Internal server error"

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeOK writes {success:true, <key>: payload}.
func writeOK(w http.ResponseWriter, status int, key string, payload interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		key:       payload,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: message})
}

// statusFor maps a domain error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	var de *shared.DomainError
	message := InternalErrorMessage
	if errors.As(err, &de) {
		message = de.Message
	}

	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, message
	case shared.IsNotFound(err):
		return http.StatusNotFound, message
	case errors.Is(err, shared.ErrInProgress), shared.IsAlreadyExists(err):
		return http.StatusConflict, message
	default:
		return http.StatusInternalServerError, InternalErrorMessage
	}
}

// handleError logs the error with the request logger and writes the mapped response.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Operation(op), logger.Err(err))
	} else {
		log.Debug("request rejected", logger.Operation(op), logger.Int("status", status), logger.Err(err))
	}
	writeError(w, status, message)
}
