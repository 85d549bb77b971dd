package schema

// RecorderEventType enumerates recorder lifecycle notifications.
type RecorderEventType string

const (
	// EventRecordingStarted fires when a new reel becomes current.
	EventRecordingStarted RecorderEventType = "recording_started"
	// EventRecordingStopped fires when the current reel is finalized or
	// discarded.
	EventRecordingStopped RecorderEventType = "recording_stopped"
	// EventArmed fires on arm.
	EventArmed RecorderEventType = "armed"
	// EventDisarmed fires on disarm, including auto-disarm.
	EventDisarmed RecorderEventType = "disarmed"
	// EventFrameAdded fires for every frame appended to the current reel.
	EventFrameAdded RecorderEventType = "frame_added"
)

// RecorderEvent notifies the UI shell of a recorder state change.
type RecorderEvent struct {
	Type  RecorderEventType `json:"type"`
	State RecorderState     `json:"state"`
	Reel  ReelSummary       `json:"reel"`
	Frame *Frame            `json:"frame,omitempty"`
}

// ExportStage names one step of a bundle export.
type ExportStage string

const (
	// StageEncodeGIF is the palette animation encode.
	StageEncodeGIF ExportStage = "encode_gif"
	// StageEncodeAPNG is the full-color animation encode.
	StageEncodeAPNG ExportStage = "encode_apng"
	// StageFrameAssets covers the per-frame still exports.
	StageFrameAssets ExportStage = "frame_assets"
	// StageMetadata is the metadata JSON document.
	StageMetadata ExportStage = "metadata"
	// StageViewer is the HTML viewer document.
	StageViewer ExportStage = "viewer"
	// StageFinalize is the archive finalization.
	StageFinalize ExportStage = "finalize"
)

// ExportProgress reports incremental progress through an export.
type ExportProgress struct {
	Stage ExportStage `json:"stage"`
	// Step and Total are meaningful for per-frame stages; both are zero for
	// single-shot stages.
	Step  int `json:"step,omitempty"`
	Total int `json:"total,omitempty"`
}
