package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Guliveer/obs-channel-stats/internal/config"
	"github.com/Guliveer/obs-channel-stats/internal/model"
	"github.com/Guliveer/obs-channel-stats/internal/scheduler"
)

const (
	maxSettingsBody  = 64 << 10 // 64 KB
	overlayListLimit = 5 * time.Second
)

func (s *Server) handlePanel(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(panelHTML) //nolint:errcheck
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"polling":   s.ctrl.Status().State,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.log.InfoContext(r.Context(), "Start requested")
	s.ctrl.Start(s.runContext())
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.log.InfoContext(r.Context(), "Stop requested")
	s.ctrl.Stop(r.Context())
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleOverlays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), overlayListLimit)
	defer cancel()

	names, err := s.sink.ListNames(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to list overlays", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, overlaysResponse{
		Placeholder: model.NoTextSource,
		Overlays:    append([]string{}, names...),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Current().Redacted())
}

// handlePutSettings replaces the whole settings document. Secrets sent back
// as the redaction marker keep their current value. The sink, log and
// server sections are read-only over HTTP.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSettingsBody)

	var next config.Settings
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "settings document too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid settings: " + err.Error()})
		return
	}

	current := s.store.Current()
	next.KeepSecrets(current)
	if section := fileOnlySection(current, &next); section != "" {
		s.log.WarnContext(r.Context(), "Refused settings update", "section", section)
		writeJSON(w, http.StatusForbidden, errorResponse{Error: section + " settings can only be changed in the config file"})
		return
	}
	if err := s.store.Replace(&next); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	s.log.InfoContext(r.Context(), "Settings updated")
	writeJSON(w, http.StatusOK, s.store.Current().Redacted())
}

// fileOnlySection fills the file-only sections omitted from next with their
// current values and names the first one next changes, or "".
func fileOnlySection(current, next *config.Settings) string {
	if next.Sink == (config.SinkConfig{}) {
		next.Sink = current.Sink
	}
	if next.Log == (config.LogConfig{}) {
		next.Log = current.Log
	}
	if next.Server == (config.ServerConfig{}) {
		next.Server = current.Server
	}

	switch {
	case next.Sink != current.Sink:
		return "sink"
	case next.Log != current.Log:
		return "log"
	case next.Server != current.Server:
		return "server"
	}
	return ""
}

func (s *Server) status() statusResponse {
	return statusResponse{
		Scheduler: s.ctrl.Status(),
		Session:   s.session.SessionInfo(),
		Warnings:  config.Warnings(s.store.Current()),
	}
}

type statusResponse struct {
	Scheduler scheduler.Status  `json:"scheduler"`
	Session   model.SessionInfo `json:"session"`
	Warnings  []string          `json:"warnings,omitempty"`
}

type overlaysResponse struct {
	Placeholder string   `json:"placeholder"`
	Overlays    []string `json:"overlays"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
