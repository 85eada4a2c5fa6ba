package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/brightsync/internal/controller"
	"github.com/nerrad567/brightsync/internal/monitor"
)

// MonitorListResponse is returned by GET /monitors.
type MonitorListResponse struct {
	Monitors []monitor.Snapshot `json:"monitors"`
	Count    int                `json:"count"`
	Scanning bool               `json:"scanning"`
}

// SetBrightnessRequest is the body of PUT /monitors/{id}/brightness.
type SetBrightnessRequest struct {
	Brightness *int `json:"brightness"`
}

// RenameRequest is the body of PUT /monitors/{id}/name.
type RenameRequest struct {
	Name string `json:"name"`
}

// monitorID returns the decoded {id} path parameter. Ids may contain
// characters clients must escape, such as backslashes.
func monitorID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func (s *Server) handleListMonitors(w http.ResponseWriter, _ *http.Request) {
	monitors := s.ctrl.Registry().Snapshot()
	writeJSON(w, http.StatusOK, MonitorListResponse{
		Monitors: monitors,
		Count:    len(monitors),
		Scanning: s.ctrl.IsScanning(),
	})
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	id := monitorID(r)
	entry, ok := s.ctrl.Registry().Get(id)
	if !ok {
		writeNotFound(w, "monitor not found")
		return
	}
	writeJSON(w, http.StatusOK, entry.Snapshot())
}

// handleScan queues a scan. Redundant requests collapse into the scan
// already running.
func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	s.submit(w, controller.TriggerScan)
}

// handleRefresh queues a brightness refresh of the target monitors.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.submit(w, controller.TriggerUpdate)
}

func (s *Server) submit(w http.ResponseWriter, t controller.Trigger) {
	if !s.ctrl.Submit(t) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "trigger queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"trigger":  t.Kind.String(),
		"scanning": s.ctrl.IsScanning(),
	})
}

func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	id := monitorID(r)

	var req SetBrightnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Brightness == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "brightness is required")
		return
	}

	if err := s.ctrl.SetBrightness(r.Context(), id, *req.Brightness); err != nil {
		s.writeMonitorError(w, id, err)
		return
	}

	entry, ok := s.ctrl.Registry().Get(id)
	if !ok {
		writeNotFound(w, "monitor not found")
		return
	}
	writeJSON(w, http.StatusOK, entry.Snapshot())
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	id := monitorID(r)

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	// An empty name clears the custom name; the cache drops its record at
	// the next persist.
	name := strings.TrimSpace(req.Name)

	if err := s.ctrl.Rename(id, name); err != nil {
		s.writeMonitorError(w, id, err)
		return
	}

	entry, ok := s.ctrl.Registry().Get(id)
	if !ok {
		writeNotFound(w, "monitor not found")
		return
	}
	writeJSON(w, http.StatusOK, entry.Snapshot())
}

// writeMonitorError maps monitor and controller errors to responses.
func (s *Server) writeMonitorError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, monitor.ErrEntryNotFound):
		writeNotFound(w, "monitor not found")
	case errors.Is(err, monitor.ErrInvalidBrightness):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, monitor.ErrEntryClosed):
		writeError(w, http.StatusConflict, ErrCodeConflict, "monitor was removed")
	default:
		s.logger.Warn("monitor operation failed", "device_instance_id", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeDevice, "monitor did not accept the command")
	}
}
