package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"appwatch/internal/storage"
	"appwatch/internal/track"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SettingsUpdateRequest is a partial settings update: only non-nil fields are
// applied. Time limits are managed through /api/limits.
type SettingsUpdateRequest struct {
	MinimizeToTray                *bool `json:"minimizeToTray,omitempty"`
	StartWithWindows              *bool `json:"startWithWindows,omitempty"`
	TimeLimitNotificationsEnabled *bool `json:"timeLimitNotificationsEnabled,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleUsage returns the usage snapshot.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.usage.Snapshot())
}

// handleUsageClear wipes all accumulated usage data.
func (s *Server) handleUsageClear(w http.ResponseWriter, r *http.Request) {
	if err := s.usage.ClearData(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear usage data")
		writeError(w, http.StatusInternalServerError, "Failed to clear usage data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleNotifications polls the notification source and returns today's
// summary.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.notifications.Summary(r.Context()))
}

// handleGetSettings returns the current settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get())
}

// handleUpdateSettings applies a partial settings update.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated := s.settings.Update(func(settings *storage.Settings) {
		if req.MinimizeToTray != nil {
			settings.MinimizeToTray = *req.MinimizeToTray
		}
		if req.StartWithWindows != nil {
			settings.StartWithWindows = *req.StartWithWindows
		}
		if req.TimeLimitNotificationsEnabled != nil {
			settings.TimeLimitNotificationsEnabled = *req.TimeLimitNotificationsEnabled
		}
	})
	writeJSON(w, http.StatusOK, updated)
}

// handleGetLimits returns the configured time limits.
func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Limits())
}

// handleReplaceLimits replaces the whole limit list.
func (s *Server) handleReplaceLimits(w http.ResponseWriter, r *http.Request) {
	var limits []storage.TimeLimit
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.settings.SetLimits(limits)
	if err != nil {
		if errors.Is(err, track.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Failed to replace time limits")
		writeError(w, http.StatusInternalServerError, "Failed to replace time limits")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleAddLimit upserts a single time limit.
func (s *Server) handleAddLimit(w http.ResponseWriter, r *http.Request) {
	var limit storage.TimeLimit
	if err := json.NewDecoder(r.Body).Decode(&limit); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.settings.AddLimit(limit)
	if err != nil {
		if errors.Is(err, track.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Failed to add time limit")
		writeError(w, http.StatusInternalServerError, "Failed to add time limit")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleRemoveLimit deletes the limit for an app id.
func (s *Server) handleRemoveLimit(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["appId"]
	if appID == "" {
		writeError(w, http.StatusBadRequest, "App id is required")
		return
	}
	writeJSON(w, http.StatusOK, s.settings.RemoveLimit(appID))
}

// handleAlerts returns today's fired limit alerts.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.alerts.Records())
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents streams limit alerts as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events, cancel := s.stream.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event := <-events:
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to encode alert event")
				continue
			}
			fmt.Fprintf(w, "event: limit-alert\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
