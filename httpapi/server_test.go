package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/framereel/schema"
)

// fakeService satisfies core.Service with canned responses.
type fakeService struct {
	err error

	startReq  *schema.StartRecordingRequest
	getReq    *schema.GetReelRequest
	updateReq *schema.UpdateReelRequest
	deleteReq *schema.DeleteReelRequest
	exportReq *schema.ExportReelRequest

	exportResp schema.ExportReelResponse
	stateResp  schema.RecorderStateResponse
}

func (f *fakeService) StartRecording(ctx context.Context, req schema.StartRecordingRequest) (schema.StartRecordingResponse, error) {
	f.startReq = &req
	return schema.StartRecordingResponse{Reel: schema.ReelSummary{ID: "reel-1", Title: req.Title}}, f.err
}

func (f *fakeService) Arm(ctx context.Context, req schema.ArmRequest) (schema.ArmResponse, error) {
	return schema.ArmResponse{State: schema.StateArmed}, f.err
}

func (f *fakeService) Disarm(ctx context.Context, req schema.DisarmRequest) (schema.DisarmResponse, error) {
	return schema.DisarmResponse{State: schema.StateRecording}, f.err
}

func (f *fakeService) AddFrame(ctx context.Context, req schema.AddFrameRequest) (schema.AddFrameResponse, error) {
	return schema.AddFrameResponse{FrameID: "frame-1"}, f.err
}

func (f *fakeService) StopRecording(ctx context.Context, req schema.StopRecordingRequest) (schema.StopRecordingResponse, error) {
	return schema.StopRecordingResponse{}, f.err
}

func (f *fakeService) HandleInteraction(ctx context.Context, req schema.HandleInteractionRequest) (schema.HandleInteractionResponse, error) {
	return schema.HandleInteractionResponse{PreFrameID: "frame-pre"}, f.err
}

func (f *fakeService) RecorderState(ctx context.Context, req schema.RecorderStateRequest) (schema.RecorderStateResponse, error) {
	return f.stateResp, f.err
}

func (f *fakeService) ExportReel(ctx context.Context, req schema.ExportReelRequest) (schema.ExportReelResponse, error) {
	f.exportReq = &req
	return f.exportResp, f.err
}

func (f *fakeService) ListReels(ctx context.Context, req schema.ListReelsRequest) (schema.ListReelsResponse, error) {
	return schema.ListReelsResponse{}, f.err
}

func (f *fakeService) GetReel(ctx context.Context, req schema.GetReelRequest) (schema.GetReelResponse, error) {
	f.getReq = &req
	return schema.GetReelResponse{Reel: schema.Reel{ID: req.ReelID}}, f.err
}

func (f *fakeService) UpdateReel(ctx context.Context, req schema.UpdateReelRequest) (schema.UpdateReelResponse, error) {
	f.updateReq = &req
	return schema.UpdateReelResponse{Reel: schema.ReelSummary{ID: req.ReelID}}, f.err
}

func (f *fakeService) DeleteReel(ctx context.Context, req schema.DeleteReelRequest) (schema.DeleteReelResponse, error) {
	f.deleteReq = &req
	return schema.DeleteReelResponse{}, f.err
}

func (f *fakeService) CleanupReels(ctx context.Context, req schema.CleanupReelsRequest) (schema.CleanupReelsResponse, error) {
	return schema.CleanupReelsResponse{}, f.err
}

func (f *fakeService) StorageInfo(ctx context.Context, req schema.StorageInfoRequest) (schema.StorageInfoResponse, error) {
	return schema.StorageInfoResponse{ReelCount: 2}, f.err
}

func (f *fakeService) Flush(ctx context.Context) error {
	return f.err
}

func newTestHandler(service *fakeService) http.Handler {
	return NewServer(Config{}, service, NewHub(10, nil)).Handler()
}

func TestStartRecordingEndpoint(t *testing.T) {
	service := &fakeService{}
	handler := newTestHandler(service)

	body := strings.NewReader(`{"title":"demo"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/recorder/start", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if service.startReq == nil || service.startReq.Title != "demo" {
		t.Fatalf("service saw %+v", service.startReq)
	}
	var resp schema.StartRecordingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reel.ID != "reel-1" {
		t.Fatalf("response %+v", resp)
	}
}

func TestStartRecordingRejectsUnknownFields(t *testing.T) {
	handler := newTestHandler(&fakeService{})

	body := strings.NewReader(`{"titel":"typo"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/recorder/start", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&fakeService{})

	for _, path := range []string{
		"/api/recorder/start",
		"/api/recorder/stop",
		"/api/recorder/arm",
		"/api/recorder/disarm",
		"/api/recorder/frame",
		"/api/recorder/interaction",
		"/api/reels/abc123/export",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s status %d, want 405", path, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/recorder/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST state status %d, want 405", rec.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{schema.ErrReelNotFound, http.StatusNotFound},
		{schema.ErrInvalidRequest, http.StatusBadRequest},
		{schema.ErrUnsupportedFormat, http.StatusBadRequest},
		{schema.ErrNoFrames, http.StatusBadRequest},
		{schema.ErrAlreadyRecording, http.StatusConflict},
		{schema.ErrNotRecording, http.StatusConflict},
		{schema.ErrNotArmed, http.StatusConflict},
		{schema.ErrCaptureBusy, http.StatusConflict},
		{schema.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{schema.ErrSurfaceUnavailable, http.StatusServiceUnavailable},
		{schema.ErrRendererUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestServiceErrorsMapToHTTPStatus(t *testing.T) {
	service := &fakeService{err: schema.ErrNotRecording}
	handler := newTestHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/recorder/stop", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("error payload %v", payload)
	}
}

func TestReelRouting(t *testing.T) {
	service := &fakeService{}
	handler := newTestHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/reels/abc123", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}
	if service.getReq == nil || service.getReq.ReelID != "abc123" {
		t.Fatalf("get saw %+v", service.getReq)
	}

	body := strings.NewReader(`{"title":"renamed"}`)
	req = httptest.NewRequest(http.MethodPatch, "/api/reels/abc123", body)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status %d", rec.Code)
	}
	if service.updateReq == nil || service.updateReq.ReelID != "abc123" {
		t.Fatalf("patch saw %+v", service.updateReq)
	}
	if service.updateReq.Title == nil || *service.updateReq.Title != "renamed" {
		t.Fatalf("patch title %+v", service.updateReq.Title)
	}
	if service.updateReq.Description != nil {
		t.Fatalf("patch must leave the description pointer nil")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/reels/abc123", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	if service.deleteReq == nil || service.deleteReq.ReelID != "abc123" {
		t.Fatalf("delete saw %+v", service.deleteReq)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/reels/abc123/unknown", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action status %d, want 404", rec.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	service := &fakeService{
		exportResp: schema.ExportReelResponse{
			Payload:  []byte("zip-bytes"),
			Filename: "demo.zip",
			MIMEType: "application/zip",
			Size:     9,
		},
	}
	handler := newTestHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/reels/abc123/export?format=bundle&metadata=true&html=true&filename=demo", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if service.exportReq == nil {
		t.Fatalf("export not called")
	}
	got := *service.exportReq
	if got.ReelID != "abc123" || got.Format != schema.FormatBundle || !got.IncludeMetadata || !got.IncludeHTML || got.Filename != "demo" {
		t.Fatalf("export saw %+v", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `"demo.zip"`) {
		t.Fatalf("content disposition %q", cd)
	}
	if rec.Body.String() != "zip-bytes" {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestExportDefaultsToGIF(t *testing.T) {
	service := &fakeService{exportResp: schema.ExportReelResponse{MIMEType: "image/gif"}}
	handler := newTestHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/reels/abc123/export", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if service.exportReq == nil || service.exportReq.Format != schema.FormatGIF {
		t.Fatalf("export saw %+v", service.exportReq)
	}
}

func TestBasePathRouting(t *testing.T) {
	service := &fakeService{stateResp: schema.RecorderStateResponse{State: schema.StateIdle}}
	handler := NewServer(Config{BasePath: "reel"}, service, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/reel/api/recorder/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("prefixed status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/recorder/state", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unprefixed status %d, want 404", rec.Code)
	}
}

func TestEventsEndpointWithoutHub(t *testing.T) {
	handler := NewServer(Config{}, &fakeService{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/recorder/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}
