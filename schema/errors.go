package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAlreadyRecording indicates startRecording while a reel is active.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording indicates an operation that requires an active reel.
	ErrNotRecording = errors.New("not recording")
	// ErrNotArmed indicates an interaction capture while not armed.
	ErrNotArmed = errors.New("recorder not armed")
	// ErrCaptureBusy indicates a capture sequence is already in flight.
	ErrCaptureBusy = errors.New("capture already in progress")
	// ErrReelNotFound indicates a requested reel does not exist in the store.
	ErrReelNotFound = errors.New("reel not found")
	// ErrNoFrames indicates an encode or export over zero frames.
	ErrNoFrames = errors.New("no frames to encode")
	// ErrUnsupportedFormat indicates an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrRendererUnavailable indicates no renderer is configured.
	ErrRendererUnavailable = errors.New("renderer not configured")
	// ErrSurfaceUnavailable indicates no surface is configured.
	ErrSurfaceUnavailable = errors.New("surface not configured")
	// ErrStoreUnavailable indicates no reel store is configured.
	ErrStoreUnavailable = errors.New("reel store not configured")
)
