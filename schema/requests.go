package schema

// StartRecordingRequest begins a new recording session.
type StartRecordingRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	// Settings overrides the service defaults for this reel. Zero-value
	// fields fall back to the configured defaults.
	Settings *ReelSettings `json:"settings,omitempty"`
}

// StartRecordingResponse reports the created reel.
type StartRecordingResponse struct {
	Reel ReelSummary `json:"reel"`
}

// ArmRequest arms the recorder for the next qualifying interaction.
type ArmRequest struct{}

// ArmResponse reports the recorder state after arming.
type ArmResponse struct {
	State RecorderState `json:"state"`
}

// DisarmRequest disarms the recorder.
type DisarmRequest struct{}

// DisarmResponse reports the recorder state after disarming.
type DisarmResponse struct {
	State RecorderState `json:"state"`
}

// AddFrameRequest captures one manual frame synchronously.
type AddFrameRequest struct {
	// HTMLSnapshot optionally attaches a serialized markup snapshot to the
	// frame's metadata.
	HTMLSnapshot string `json:"html_snapshot,omitempty"`
}

// AddFrameResponse reports the appended frame.
type AddFrameResponse struct {
	FrameID FrameID `json:"frame_id"`
	Order   int     `json:"order"`
}

// StopRecordingRequest finalizes and persists the current reel.
type StopRecordingRequest struct{}

// StopRecordingResponse reports the persisted reel. Discarded is true when
// the reel had zero frames and was dropped without persisting.
type StopRecordingResponse struct {
	Reel      ReelSummary `json:"reel"`
	Discarded bool        `json:"discarded"`
}

// HandleInteractionRequest runs the armed capture sequence for one
// interaction: pre-click frame, settlement detection, post-click frame,
// replay, auto-disarm.
type HandleInteractionRequest struct {
	Interaction Interaction `json:"interaction"`
}

// HandleInteractionResponse reports the frames appended by the sequence.
type HandleInteractionResponse struct {
	PreFrameID  FrameID `json:"pre_frame_id"`
	PostFrameID FrameID `json:"post_frame_id,omitempty"`
	// Settled is false when the settlement loop exhausted its budget without
	// two identical consecutive renders.
	Settled bool `json:"settled"`
}

// RecorderStateRequest reads the recorder state.
type RecorderStateRequest struct{}

// RecorderStateResponse is the read-only state exposed to the UI shell.
type RecorderStateResponse struct {
	State     RecorderState `json:"state"`
	Reel      *ReelSummary  `json:"reel,omitempty"`
	Capturing bool          `json:"capturing"`
	LastError string        `json:"last_error,omitempty"`
}

// ExportReelRequest exports a stored reel.
type ExportReelRequest struct {
	ReelID          ReelID       `json:"reel_id"`
	Format          ExportFormat `json:"format"`
	IncludeMetadata bool         `json:"include_metadata"`
	IncludeHTML     bool         `json:"include_html"`
	Filename        string       `json:"filename,omitempty"`
}

// ExportReelResponse carries the export artifact.
type ExportReelResponse struct {
	Payload  []byte `json:"payload"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// ListReelsRequest lists stored reels.
type ListReelsRequest struct{}

// ListReelsResponse carries reel summaries, most recent first.
type ListReelsResponse struct {
	Reels []ReelSummary `json:"reels"`
}

// GetReelRequest loads one stored reel with frames.
type GetReelRequest struct {
	ReelID ReelID `json:"reel_id"`
}

// GetReelResponse carries the loaded reel.
type GetReelResponse struct {
	Reel Reel `json:"reel"`
}

// UpdateReelRequest updates the mutable fields of a stored reel.
type UpdateReelRequest struct {
	ReelID      ReelID  `json:"reel_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateReelResponse reports the updated summary.
type UpdateReelResponse struct {
	Reel ReelSummary `json:"reel"`
}

// DeleteReelRequest deletes a stored reel and all its frames.
type DeleteReelRequest struct {
	ReelID ReelID `json:"reel_id"`
}

// DeleteReelResponse is empty on success.
type DeleteReelResponse struct{}

// CleanupReelsRequest evicts the oldest reels past KeepCount.
type CleanupReelsRequest struct {
	KeepCount int `json:"keep_count"`
}

// CleanupReelsResponse lists the evicted reel ids.
type CleanupReelsResponse struct {
	Deleted []ReelID `json:"deleted"`
}

// StorageInfoRequest reads store usage.
type StorageInfoRequest struct{}

// StorageInfoResponse reports store usage counters.
type StorageInfoResponse struct {
	ReelCount  int   `json:"reel_count"`
	FrameCount int   `json:"frame_count"`
	TotalBytes int64 `json:"total_bytes"`
	QuotaBytes int64 `json:"quota_bytes,omitempty"`
	UsedBytes  int64 `json:"used_bytes,omitempty"`
}
