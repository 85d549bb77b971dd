package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/framereel/export"
	"pkt.systems/framereel/internal/logx"
	"pkt.systems/framereel/reelstore"
	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

// service implements the recorder service behavior.
type service struct {
	cfg    schema.ServiceConfig
	engine *captureEngine
	store  *reelstore.Store
	sink   EventSink
	clock  Clock
	logger pslog.Logger

	mu            sync.Mutex
	state         schema.RecorderState
	current       *schema.Reel
	capturing     bool
	lastErr       string
	captureCancel context.CancelFunc
}

// NewService constructs the recorder service. The store handle is created
// and owned by the caller; a nil store disables persistence-backed
// operations.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Surface == nil {
		return nil, schema.ErrSurfaceUnavailable
	}
	if deps.Renderer == nil {
		return nil, schema.ErrRendererUnavailable
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &service{
		cfg:    cfg,
		engine: newCaptureEngine(deps.Surface, deps.Renderer, logger),
		store:  deps.Store,
		sink:   deps.EventSink,
		clock:  clock,
		logger: logger,
		state:  schema.StateIdle,
	}, nil
}

func (s *service) StartRecording(ctx context.Context, req schema.StartRecordingRequest) (schema.StartRecordingResponse, error) {
	if ctx == nil {
		return schema.StartRecordingResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	settings := s.cfg.Defaults
	if req.Settings != nil {
		settings = schema.NormalizeReelSettings(*req.Settings)
	}
	start := s.clock.Now()
	title := req.Title
	if title == "" {
		title = "Recording " + start.Format("2006-01-02 15:04:05")
	}
	reel := &schema.Reel{
		ID:          schema.ReelID(newID()),
		Title:       title,
		Description: req.Description,
		StartTime:   start,
		Frames:      []schema.Frame{},
		Settings:    settings,
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		log.Warn("recording start rejected", "err", schema.ErrAlreadyRecording)
		return schema.StartRecordingResponse{}, schema.ErrAlreadyRecording
	}
	s.current = reel
	s.state = schema.StateRecording
	s.lastErr = ""
	summary := summarize(reel)
	s.mu.Unlock()

	s.emit(schema.RecorderEvent{Type: schema.EventRecordingStarted, State: schema.StateRecording, Reel: summary})
	logx.WithReel(log, reel.ID).Info("recording started", "title", reel.Title)
	return schema.StartRecordingResponse{Reel: summary}, nil
}

func (s *service) Arm(ctx context.Context, req schema.ArmRequest) (schema.ArmResponse, error) {
	_ = req
	log := logx.Ctx(ctx)
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		log.Warn("arm rejected", "err", schema.ErrNotRecording)
		return schema.ArmResponse{}, schema.ErrNotRecording
	}
	s.state = schema.StateArmed
	summary := summarize(s.current)
	reelID := s.current.ID
	s.mu.Unlock()
	s.emit(schema.RecorderEvent{Type: schema.EventArmed, State: schema.StateArmed, Reel: summary})
	logx.WithReel(log, reelID).Debug("recorder armed")
	return schema.ArmResponse{State: schema.StateArmed}, nil
}

func (s *service) Disarm(ctx context.Context, req schema.DisarmRequest) (schema.DisarmResponse, error) {
	_ = req
	log := logx.Ctx(ctx)
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		log.Warn("disarm rejected", "err", schema.ErrNotRecording)
		return schema.DisarmResponse{}, schema.ErrNotRecording
	}
	cancel := s.captureCancel
	s.state = schema.StateRecording
	summary := summarize(s.current)
	reelID := s.current.ID
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.emit(schema.RecorderEvent{Type: schema.EventDisarmed, State: schema.StateRecording, Reel: summary})
	logx.WithReel(log, reelID).Debug("recorder disarmed")
	return schema.DisarmResponse{State: schema.StateRecording}, nil
}

func (s *service) AddFrame(ctx context.Context, req schema.AddFrameRequest) (schema.AddFrameResponse, error) {
	if ctx == nil {
		return schema.AddFrameResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		log.Warn("manual frame rejected", "err", schema.ErrNotRecording)
		return schema.AddFrameResponse{}, schema.ErrNotRecording
	}
	if s.capturing {
		s.mu.Unlock()
		log.Warn("manual frame rejected", "err", schema.ErrCaptureBusy)
		return schema.AddFrameResponse{}, schema.ErrCaptureBusy
	}
	s.capturing = true
	reelID := s.current.ID
	opts := s.captureOptionsLocked()
	s.mu.Unlock()
	defer s.clearCapturing()

	log = logx.WithReel(log, reelID)
	image, meta, err := s.engine.capture(ctx, opts, nil)
	if err != nil {
		s.noteError(err)
		log.Error("manual capture failed", "err", err)
		return schema.AddFrameResponse{}, err
	}
	meta.Phase = schema.PhaseManual
	meta.HTMLSnapshot = req.HTMLSnapshot

	frame, err := s.appendFrame(image, meta)
	if err != nil {
		return schema.AddFrameResponse{}, err
	}
	log.Info("manual frame captured", "frame", frame.ID, "order", frame.Order, "bytes", len(frame.Image))
	return schema.AddFrameResponse{FrameID: frame.ID, Order: frame.Order}, nil
}

func (s *service) StopRecording(ctx context.Context, req schema.StopRecordingRequest) (schema.StopRecordingResponse, error) {
	_ = req
	log := logx.Ctx(ctx)

	s.mu.Lock()
	reel := s.current
	cancel := s.captureCancel
	s.mu.Unlock()
	if reel == nil {
		log.Warn("recording stop rejected", "err", schema.ErrNotRecording)
		return schema.StopRecordingResponse{}, schema.ErrNotRecording
	}
	if cancel != nil {
		cancel()
	}
	log = logx.WithReel(log, reel.ID)

	s.mu.Lock()
	// Empty reels are never stored.
	if len(reel.Frames) == 0 {
		s.current = nil
		s.state = schema.StateIdle
		summary := summarize(reel)
		s.mu.Unlock()
		s.emit(schema.RecorderEvent{Type: schema.EventRecordingStopped, State: schema.StateIdle, Reel: summary})
		log.Info("recording discarded", "reason", "no frames")
		return schema.StopRecordingResponse{Reel: summary, Discarded: true}, nil
	}
	end := s.clock.Now()
	reel.EndTime = &end
	reel.Metadata = deriveMetadata(reel, s.cfg.SurfaceID)
	// Snapshot under the lock so a concurrent append cannot mutate the
	// frames while the store writes them.
	snapshot := snapshotReel(reel)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveReel(ctx, snapshot); err != nil {
			// The reel stays current so the caller can retry the stop.
			s.noteError(err)
			log.Error("recording persist failed", "err", err)
			return schema.StopRecordingResponse{}, fmt.Errorf("persist reel: %w", err)
		}
		if s.cfg.KeepReels > 0 {
			deleted, err := s.store.CleanupOldReels(ctx, s.cfg.KeepReels)
			if err != nil {
				log.Warn("reel eviction failed", "err", err)
			} else if len(deleted) > 0 {
				log.Info("old reels evicted", "count", len(deleted), "keep", s.cfg.KeepReels)
			}
		}
	}

	s.mu.Lock()
	s.current = nil
	s.state = schema.StateIdle
	s.mu.Unlock()
	summary := summarize(&snapshot)
	s.emit(schema.RecorderEvent{Type: schema.EventRecordingStopped, State: schema.StateIdle, Reel: summary})
	log.Info("recording stopped", "frames", summary.FrameCount, "duration_ms", snapshot.Metadata.Duration.Milliseconds(), "clicks", snapshot.Metadata.ClickCount)
	return schema.StopRecordingResponse{Reel: summary}, nil
}

// HandleInteraction runs the armed capture sequence for one interaction. The
// shell has already suppressed the interaction's natural effect; the
// sequence captures the pre-click frame with a marker, waits for settlement,
// captures the post-click frame, replays a synthetic duplicate of the
// interaction, and auto-disarms. Exactly one pre-click and at most one
// post-click frame are appended.
func (s *service) HandleInteraction(ctx context.Context, req schema.HandleInteractionRequest) (schema.HandleInteractionResponse, error) {
	if ctx == nil {
		return schema.HandleInteractionResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.current == nil || s.state != schema.StateArmed {
		s.mu.Unlock()
		log.Warn("interaction rejected", "err", schema.ErrNotArmed)
		return schema.HandleInteractionResponse{}, schema.ErrNotArmed
	}
	if s.capturing {
		// A second armed interaction while a sequence is in flight is
		// ignored, never interleaved.
		s.mu.Unlock()
		log.Warn("interaction ignored", "err", schema.ErrCaptureBusy)
		return schema.HandleInteractionResponse{}, schema.ErrCaptureBusy
	}
	s.capturing = true
	reelID := s.current.ID
	settings := s.current.Settings
	opts := s.captureOptionsLocked()
	captureCtx, cancel := context.WithCancel(ctx)
	s.captureCancel = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		s.capturing = false
		s.captureCancel = nil
		s.mu.Unlock()
	}()

	log = logx.WithReel(log, reelID)
	ic := req.Interaction

	image, meta, err := s.engine.capture(captureCtx, opts, &markerRequest{Interaction: ic})
	if err != nil {
		s.noteError(err)
		s.autoDisarm(log)
		log.Error("pre-click capture failed", "err", err)
		return schema.HandleInteractionResponse{}, err
	}
	meta.Phase = schema.PhasePreClick
	pre, err := s.appendFrame(image, meta)
	if err != nil {
		s.autoDisarm(log)
		return schema.HandleInteractionResponse{}, err
	}
	log.Debug("pre-click frame appended", "frame", pre.ID, "order", pre.Order)

	resp := schema.HandleInteractionResponse{PreFrameID: pre.ID}
	result, err := s.detectAndCapture(captureCtx, opts, settlePolicy{
		Delay:            settings.PostClickDelay,
		Interval:         settings.SettleInterval,
		MaxDuration:      settings.MaxCaptureTime,
		PromoteLastFrame: settings.PromoteLastFrame,
	})
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("settlement aborted", "reason", "capture canceled")
	case err != nil:
		s.noteError(err)
		s.autoDisarm(log)
		log.Error("post-click capture failed", "err", err)
		return schema.HandleInteractionResponse{}, err
	case result.Image != nil:
		postMeta := result.Metadata
		postMeta.Phase = schema.PhasePostClick
		postMeta.ViewportCoords = ic.ViewportCoords
		postMeta.RelativeCoords = ic.RelativeCoords
		postMeta.ElementPath = ic.ElementPath
		postMeta.Button = ic.Button
		post, err := s.appendFrame(result.Image, postMeta)
		if err != nil {
			s.autoDisarm(log)
			return schema.HandleInteractionResponse{}, err
		}
		resp.PostFrameID = post.ID
		resp.Settled = result.Settled
		log.Debug("post-click frame appended", "frame", post.ID, "order", post.Order, "settled", result.Settled, "attempts", result.Attempts)
	}

	// Replay a marked synthetic duplicate so the surface still reacts to the
	// user's original interaction.
	replayErr := s.engine.surface.ReplayInteraction(ctx, ic)
	s.autoDisarm(log)
	if replayErr != nil {
		s.noteError(replayErr)
		log.Error("interaction replay failed", "err", replayErr)
		return resp, fmt.Errorf("replay interaction: %w", replayErr)
	}
	return resp, nil
}

func (s *service) RecorderState(ctx context.Context, req schema.RecorderStateRequest) (schema.RecorderStateResponse, error) {
	_ = ctx
	_ = req
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := schema.RecorderStateResponse{
		State:     s.state,
		Capturing: s.capturing,
		LastError: s.lastErr,
	}
	if s.current != nil {
		summary := summarize(s.current)
		resp.Reel = &summary
	}
	return resp, nil
}

func (s *service) ExportReel(ctx context.Context, req schema.ExportReelRequest) (schema.ExportReelResponse, error) {
	log := logx.WithReel(logx.Ctx(ctx), req.ReelID)
	if s.store == nil {
		return schema.ExportReelResponse{}, schema.ErrStoreUnavailable
	}
	reel, err := s.store.LoadReel(ctx, req.ReelID)
	if err != nil {
		log.Warn("export load failed", "err", err)
		return schema.ExportReelResponse{}, err
	}
	artifact, err := export.Export(ctx, reel, export.Options{
		Format:          req.Format,
		IncludeMetadata: req.IncludeMetadata,
		IncludeHTML:     req.IncludeHTML,
		Filename:        req.Filename,
	})
	if err != nil {
		log.Warn("export failed", "format", req.Format, "err", err)
		return schema.ExportReelResponse{}, err
	}
	log.Info("reel exported", "format", req.Format, "filename", artifact.Filename, "bytes", artifact.Size)
	return schema.ExportReelResponse{
		Payload:  artifact.Payload,
		Filename: artifact.Filename,
		MIMEType: artifact.MIMEType,
		Size:     artifact.Size,
	}, nil
}

func (s *service) ListReels(ctx context.Context, req schema.ListReelsRequest) (schema.ListReelsResponse, error) {
	_ = req
	if s.store == nil {
		return schema.ListReelsResponse{}, schema.ErrStoreUnavailable
	}
	reels, err := s.store.LoadAllReels(ctx)
	if err != nil {
		return schema.ListReelsResponse{}, err
	}
	logx.Ctx(ctx).Debug("reels listed", "count", len(reels))
	return schema.ListReelsResponse{Reels: reels}, nil
}

func (s *service) GetReel(ctx context.Context, req schema.GetReelRequest) (schema.GetReelResponse, error) {
	if s.store == nil {
		return schema.GetReelResponse{}, schema.ErrStoreUnavailable
	}
	reel, err := s.store.LoadReel(ctx, req.ReelID)
	if err != nil {
		return schema.GetReelResponse{}, err
	}
	return schema.GetReelResponse{Reel: reel}, nil
}

func (s *service) UpdateReel(ctx context.Context, req schema.UpdateReelRequest) (schema.UpdateReelResponse, error) {
	log := logx.WithReel(logx.Ctx(ctx), req.ReelID)
	if s.store == nil {
		return schema.UpdateReelResponse{}, schema.ErrStoreUnavailable
	}
	summary, err := s.store.UpdateReel(ctx, req.ReelID, req.Title, req.Description)
	if err != nil {
		log.Warn("reel update failed", "err", err)
		return schema.UpdateReelResponse{}, err
	}
	log.Info("reel updated")
	return schema.UpdateReelResponse{Reel: summary}, nil
}

func (s *service) DeleteReel(ctx context.Context, req schema.DeleteReelRequest) (schema.DeleteReelResponse, error) {
	log := logx.WithReel(logx.Ctx(ctx), req.ReelID)
	if s.store == nil {
		return schema.DeleteReelResponse{}, schema.ErrStoreUnavailable
	}
	if err := s.store.DeleteReel(ctx, req.ReelID); err != nil {
		log.Warn("reel delete failed", "err", err)
		return schema.DeleteReelResponse{}, err
	}
	log.Info("reel deleted")
	return schema.DeleteReelResponse{}, nil
}

func (s *service) CleanupReels(ctx context.Context, req schema.CleanupReelsRequest) (schema.CleanupReelsResponse, error) {
	log := logx.Ctx(ctx)
	if s.store == nil {
		return schema.CleanupReelsResponse{}, schema.ErrStoreUnavailable
	}
	if req.KeepCount < 0 {
		return schema.CleanupReelsResponse{}, fmt.Errorf("%w: keep count must not be negative", schema.ErrInvalidRequest)
	}
	deleted, err := s.store.CleanupOldReels(ctx, req.KeepCount)
	if err != nil {
		return schema.CleanupReelsResponse{}, err
	}
	log.Info("reels cleaned up", "deleted", len(deleted), "keep", req.KeepCount)
	return schema.CleanupReelsResponse{Deleted: deleted}, nil
}

func (s *service) StorageInfo(ctx context.Context, req schema.StorageInfoRequest) (schema.StorageInfoResponse, error) {
	_ = req
	if s.store == nil {
		return schema.StorageInfoResponse{}, schema.ErrStoreUnavailable
	}
	info, err := s.store.StorageInfo(ctx)
	if err != nil {
		return schema.StorageInfoResponse{}, err
	}
	return schema.StorageInfoResponse{
		ReelCount:  info.ReelCount,
		FrameCount: info.FrameCount,
		TotalBytes: info.TotalBytes,
		QuotaBytes: info.QuotaBytes,
		UsedBytes:  info.UsedBytes,
	}, nil
}

// Flush persists the in-progress reel without finalizing it. Best effort,
// intended for host shutdown; the reel stays current.
func (s *service) Flush(ctx context.Context) error {
	s.mu.Lock()
	reel := s.current
	var snapshot schema.Reel
	if reel != nil {
		snapshot = snapshotReel(reel)
	}
	s.mu.Unlock()
	if reel == nil || s.store == nil || len(snapshot.Frames) == 0 {
		return nil
	}
	log := logx.WithReel(logx.Ctx(ctx), snapshot.ID)
	if err := s.store.SaveReel(ctx, snapshot); err != nil {
		log.Warn("flush failed", "err", err)
		return err
	}
	log.Info("in-progress reel flushed", "frames", len(snapshot.Frames))
	return nil
}

// appendFrame appends one frame to the current reel at the next order index.
func (s *service) appendFrame(image []byte, meta schema.FrameMetadata) (schema.Frame, error) {
	s.mu.Lock()
	reel := s.current
	if reel == nil {
		s.mu.Unlock()
		return schema.Frame{}, schema.ErrNotRecording
	}
	frame := schema.Frame{
		ID:        schema.FrameID(newID()),
		ReelID:    reel.ID,
		Image:     image,
		Timestamp: frameTimestamp(s.clock),
		Order:     len(reel.Frames),
		Metadata:  meta,
	}
	reel.Frames = append(reel.Frames, frame)
	summary := summarize(reel)
	state := s.state
	s.mu.Unlock()
	s.emit(schema.RecorderEvent{Type: schema.EventFrameAdded, State: state, Reel: summary, Frame: &frame})
	return frame, nil
}

func (s *service) captureOptionsLocked() captureOptions {
	settings := s.current.Settings
	return captureOptions{
		Scale:       settings.Scale,
		MaxWidth:    settings.MaxWidth,
		MaxHeight:   settings.MaxHeight,
		Obfuscate:   settings.Obfuscate,
		Obfuscation: s.cfg.Obfuscation,
		MarkerSize:  settings.MarkerSize,
		MarkerColor: settings.MarkerColor,
	}
}

func (s *service) autoDisarm(log pslog.Logger) {
	s.mu.Lock()
	if s.current == nil || s.state != schema.StateArmed {
		s.mu.Unlock()
		return
	}
	s.state = schema.StateRecording
	summary := summarize(s.current)
	s.mu.Unlock()
	s.emit(schema.RecorderEvent{Type: schema.EventDisarmed, State: schema.StateRecording, Reel: summary})
	if log != nil {
		log.Debug("recorder auto-disarmed")
	}
}

func (s *service) clearCapturing() {
	s.mu.Lock()
	s.capturing = false
	s.mu.Unlock()
}

func (s *service) noteError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *service) emit(event schema.RecorderEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnRecorderEvent(event)
}

// snapshotReel copies a reel with its own frame slice, so store writes never
// share a backing array with the live reel.
func snapshotReel(reel *schema.Reel) schema.Reel {
	snapshot := *reel
	snapshot.Frames = append([]schema.Frame(nil), reel.Frames...)
	return snapshot
}

func summarize(reel *schema.Reel) schema.ReelSummary {
	var size int64
	for _, frame := range reel.Frames {
		size += int64(len(frame.Image))
	}
	return schema.ReelSummary{
		ID:            reel.ID,
		Title:         reel.Title,
		Description:   reel.Description,
		StartTime:     reel.StartTime,
		EndTime:       reel.EndTime,
		FrameCount:    len(reel.Frames),
		EstimatedSize: size,
	}
}

// deriveMetadata computes the reel metadata finalized at stop time.
func deriveMetadata(reel *schema.Reel, surfaceID schema.SurfaceID) schema.ReelMetadata {
	meta := schema.ReelMetadata{SurfaceID: surfaceID}
	if reel.EndTime != nil {
		meta.Duration = reel.EndTime.Sub(reel.StartTime)
		if meta.Duration < 0 {
			meta.Duration = 0
		}
	}
	for _, frame := range reel.Frames {
		if frame.Metadata.Phase == schema.PhasePreClick {
			meta.ClickCount++
		}
		if frame.Metadata.ViewportSize != (schema.Size{}) {
			meta.ViewportSize = frame.Metadata.ViewportSize
		}
	}
	return meta
}
