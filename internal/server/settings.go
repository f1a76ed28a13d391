// ABOUTME: HTTP handlers for reading, changing and streaming the settings snapshot
// ABOUTME: Candidates are validated before commit; storage failures never surface here

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/2389/mlra/internal/auth"
	"github.com/2389/mlra/internal/settings"
)

const (
	maxSettingsBody   = 1 << 20
	keepaliveInterval = 30 * time.Second
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handleGetDefaults(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.Defaults())
}

// handleReplaceSettings accepts a complete record. Unknown fields are
// rejected; omitted fields are zero and usually fail validation.
func (s *Server) handleReplaceSettings(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readSettingsBody(w, r)
	if !ok {
		return
	}

	var next settings.Settings
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid settings JSON: "+err.Error())
		return
	}
	if err := next.Validate(); err != nil {
		s.sendValidationError(w, err)
		return
	}

	s.settings.Replace(next)
	s.logger.Info("settings replaced", "subject", auth.SubjectFromContext(r.Context()))
	s.writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readSettingsBody(w, r)
	if !ok {
		return
	}

	if err := s.settings.ApplyValidated(body); err != nil {
		s.sendValidationError(w, err)
		return
	}

	s.logger.Info("settings patched", "subject", auth.SubjectFromContext(r.Context()))
	s.writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	s.settings.Reset()
	s.logger.Info("settings reset", "subject", auth.SubjectFromContext(r.Context()))
	s.writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) readSettingsBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendJSONError(w, http.StatusRequestEntityTooLarge, "settings body too large")
			return nil, false
		}
		s.sendJSONError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	return body, true
}

// sendValidationError reports field failures as 422 and malformed patches as 400.
func (s *Server) sendValidationError(w http.ResponseWriter, err error) {
	var verr *settings.ValidationError
	if errors.As(err, &verr) {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
		return
	}
	s.sendJSONError(w, http.StatusBadRequest, err.Error())
}

// handleSettingsEvents streams the current snapshot, then every change, as
// "settings" SSE events. A slow client skips intermediate snapshots.
func (s *Server) handleSettingsEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	updates, subID := s.settings.Subscribe(ctx)
	defer s.settings.Unsubscribe(subID)

	if s.metrics != nil {
		s.metrics.SubscribersGauge.Inc()
		defer s.metrics.SubscribersGauge.Dec()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := s.writeSSEEvent(w, "settings", s.settings.Get()); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeSSEEvent(w, "settings", snap); err != nil {
				s.logger.Debug("settings stream closed", "sub_id", subID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
