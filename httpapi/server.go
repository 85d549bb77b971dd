// Package httpapi exposes the recorder service over a local HTTP command
// surface: recorder lifecycle commands, reel CRUD and export, and a
// server-sent event stream of recorder state changes.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pkt.systems/framereel/core"
	"pkt.systems/framereel/internal/logx"
	"pkt.systems/framereel/schema"
)

// Server serves the HTTP command surface.
type Server struct {
	cfg      Config
	service  core.Service
	hub      *Hub
	basePath string
}

// NewServer constructs an HTTP server around a recorder service. The hub is
// optional; without it the event stream endpoint reports unavailability.
func NewServer(cfg Config, service core.Service, hub *Hub) *Server {
	return &Server{
		cfg:      cfg,
		service:  service,
		hub:      hub,
		basePath: normalizeBasePath(cfg.BasePath),
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/recorder/start", s.handleStart)
	mux.HandleFunc("/api/recorder/stop", s.handleStop)
	mux.HandleFunc("/api/recorder/arm", s.handleArm)
	mux.HandleFunc("/api/recorder/disarm", s.handleDisarm)
	mux.HandleFunc("/api/recorder/frame", s.handleFrame)
	mux.HandleFunc("/api/recorder/interaction", s.handleInteraction)
	mux.HandleFunc("/api/recorder/state", s.handleState)
	mux.HandleFunc("/api/recorder/events", s.handleEvents)
	mux.HandleFunc("/api/reels", s.handleReels)
	mux.HandleFunc("/api/reels/cleanup", s.handleCleanup)
	mux.HandleFunc("/api/reels/", s.handleReel)
	mux.HandleFunc("/api/storage", s.handleStorage)

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req schema.StartRecordingRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	resp, err := s.service.StartRecording(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "start recording", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.StopRecording(r.Context(), schema.StopRecordingRequest{})
	if err != nil {
		s.writeServiceError(w, r, "stop recording", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.Arm(r.Context(), schema.ArmRequest{})
	if err != nil {
		s.writeServiceError(w, r, "arm", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.Disarm(r.Context(), schema.DisarmRequest{})
	if err != nil {
		s.writeServiceError(w, r, "disarm", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req schema.AddFrameRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	resp, err := s.service.AddFrame(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "add frame", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req schema.HandleInteractionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.HandleInteraction(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "interaction", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.RecorderState(r.Context(), schema.RecorderStateRequest{})
	if err != nil {
		s.writeServiceError(w, r, "state", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event stream unavailable"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
		flusher.Flush()
	}

	ch, unsubscribe, _, _ := s.hub.Subscribe()
	defer unsubscribe()

	notify := r.Context().Done()
	log.Info("http event stream opened", "last_id", lastID, "replay", replayCount)
	for {
		select {
		case <-notify:
			log.Info("http event stream closed")
			return
		case event := <-ch:
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) handleReels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.ListReels(r.Context(), schema.ListReelsRequest{})
	if err != nil {
		s.writeServiceError(w, r, "list reels", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req schema.CleanupReelsRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.CleanupReels(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "cleanup reels", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReel routes /api/reels/{id} and /api/reels/{id}/export.
func (s *Server) handleReel(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/reels/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	id, action, _ := strings.Cut(rest, "/")
	reelID := schema.ReelID(id)
	switch {
	case action == "export":
		s.handleExport(w, r, reelID)
	case action != "":
		http.NotFound(w, r)
	default:
		switch r.Method {
		case http.MethodGet:
			resp, err := s.service.GetReel(r.Context(), schema.GetReelRequest{ReelID: reelID})
			if err != nil {
				s.writeServiceError(w, r, "get reel", err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPatch:
			var req schema.UpdateReelRequest
			if err := decodeJSON(r.Body, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			req.ReelID = reelID
			resp, err := s.service.UpdateReel(r.Context(), req)
			if err != nil {
				s.writeServiceError(w, r, "update reel", err)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodDelete:
			if _, err := s.service.DeleteReel(r.Context(), schema.DeleteReelRequest{ReelID: reelID}); err != nil {
				s.writeServiceError(w, r, "delete reel", err)
				return
			}
			writeJSON(w, http.StatusOK, schema.DeleteReelResponse{})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, reelID schema.ReelID) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	format := schema.ExportFormat(query.Get("format"))
	if format == "" {
		format = schema.FormatGIF
	}
	req := schema.ExportReelRequest{
		ReelID:          reelID,
		Format:          format,
		IncludeMetadata: query.Get("metadata") == "true",
		IncludeHTML:     query.Get("html") == "true",
		Filename:        query.Get("filename"),
	}
	resp, err := s.service.ExportReel(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "export reel", err)
		return
	}
	w.Header().Set("Content-Type", resp.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(resp.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Payload)
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.StorageInfo(r.Context(), schema.StorageInfoRequest{})
	if err != nil {
		s.writeServiceError(w, r, "storage info", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logx.Ctx(r.Context()).Error("http "+op+" failed", "err", err)
	} else {
		logx.Ctx(r.Context()).Warn("http "+op+" rejected", "err", err)
	}
	writeError(w, status, err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrReelNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrUnsupportedFormat),
		errors.Is(err, schema.ErrNoFrames):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrAlreadyRecording),
		errors.Is(err, schema.ErrNotRecording),
		errors.Is(err, schema.ErrNotArmed),
		errors.Is(err, schema.ErrCaptureBusy):
		return http.StatusConflict
	case errors.Is(err, schema.ErrStoreUnavailable),
		errors.Is(err, schema.ErrSurfaceUnavailable),
		errors.Is(err, schema.ErrRendererUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
