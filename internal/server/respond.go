// ABOUTME: Response helpers shared by the API handlers
// ABOUTME: JSON bodies, JSON errors, backend error translation and SSE framing

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2389/mlra/internal/backend"
)

// writeJSON writes v as a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendBackendError maps a failed backend call to 502. APIError details come
// from the backend itself; transport failures are not echoed.
func (s *Server) sendBackendError(w http.ResponseWriter, op string, err error) {
	if apiErr, ok := backend.IsAPIError(err); ok {
		s.logger.Warn("backend rejected request", "op", op, "status", apiErr.Status, "detail", apiErr.Detail)
		s.sendJSONError(w, http.StatusBadGateway, apiErr.Detail)
		return
	}
	s.logger.Error("backend call failed", "op", op, "error", err)
	s.sendJSONError(w, http.StatusBadGateway, "research backend unavailable")
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, dataJSON)
	return err
}
