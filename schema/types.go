package schema

import "time"

// ReelID identifies one recording session.
type ReelID string

// FrameID identifies a captured frame.
type FrameID string

// SurfaceID identifies the visual surface a reel was recorded from.
type SurfaceID string

// Point is a pixel coordinate pair.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a pixel extent.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CapturePhase marks why a frame was taken.
type CapturePhase string

const (
	// PhasePreClick is the frame captured before an armed interaction is applied.
	PhasePreClick CapturePhase = "pre-click"
	// PhasePostClick is the settled frame captured after an armed interaction.
	PhasePostClick CapturePhase = "post-click"
	// PhaseManual is a user-triggered capture outside the armed flow.
	PhaseManual CapturePhase = "manual"
)

// ButtonCode is the pointer button of the recorded interaction.
type ButtonCode int

const (
	// ButtonPrimary is the primary (usually left) pointer button.
	ButtonPrimary ButtonCode = 0
	// ButtonMiddle is the middle pointer button.
	ButtonMiddle ButtonCode = 1
	// ButtonSecondary is the secondary (usually right) pointer button.
	ButtonSecondary ButtonCode = 2
	// ButtonSynthetic marks frames not triggered by a real pointer event.
	ButtonSynthetic ButtonCode = -1
)

// Name returns the human-readable button name used in exported metadata.
func (b ButtonCode) Name() string {
	switch b {
	case ButtonPrimary:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonSecondary:
		return "right"
	case ButtonSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// FrameMetadata records the interaction and viewport context of a capture.
type FrameMetadata struct {
	ViewportCoords Point        `json:"viewport_coords"`
	RelativeCoords Point        `json:"relative_coords"`
	ElementPath    string       `json:"element_path,omitempty"`
	Button         ButtonCode   `json:"button"`
	ViewportSize   Size         `json:"viewport_size"`
	ScrollOffset   Point        `json:"scroll_offset"`
	Phase          CapturePhase `json:"phase"`
	HTMLSnapshot   string       `json:"html_snapshot,omitempty"`
}

// Frame is one captured raster image plus its metadata. Frames are immutable
// once created; a reel only ever appends new ones.
type Frame struct {
	ID        FrameID       `json:"id"`
	ReelID    ReelID        `json:"reel_id"`
	Image     []byte        `json:"image"`
	Timestamp time.Time     `json:"timestamp"`
	Order     int           `json:"order"`
	Metadata  FrameMetadata `json:"metadata"`
}

// ReelSettings is the capture-time configuration snapshot copied into a reel
// at creation, so later preference changes never alter an in-flight or
// historical recording.
type ReelSettings struct {
	MarkerSize       int           `json:"marker_size"`
	MarkerColor      string        `json:"marker_color"`
	ExportFormat     ExportFormat  `json:"export_format"`
	PostClickDelay   time.Duration `json:"post_click_delay"`
	SettleInterval   time.Duration `json:"settle_interval"`
	MaxCaptureTime   time.Duration `json:"max_capture_time"`
	Scale            float64       `json:"scale"`
	MaxWidth         int           `json:"max_width,omitempty"`
	MaxHeight        int           `json:"max_height,omitempty"`
	Obfuscate        bool          `json:"obfuscate"`
	PromoteLastFrame bool          `json:"promote_last_frame"`
}

// ReelMetadata is derived once when a recording is finalized.
type ReelMetadata struct {
	Duration     time.Duration `json:"duration"`
	ClickCount   int           `json:"click_count"`
	ViewportSize Size          `json:"viewport_size"`
	SurfaceID    SurfaceID     `json:"surface_id,omitempty"`
}

// Reel is one recording session.
type Reel struct {
	ID          ReelID       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	Frames      []Frame      `json:"frames"`
	Settings    ReelSettings `json:"settings"`
	Metadata    ReelMetadata `json:"metadata"`
}

// ReelSummary is a frame-free projection of a reel for listings.
type ReelSummary struct {
	ID            ReelID     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	FrameCount    int        `json:"frame_count"`
	EstimatedSize int64      `json:"estimated_size"`
	Thumbnail     []byte     `json:"thumbnail,omitempty"`
}

// ExportFormat selects the export artifact type.
type ExportFormat string

const (
	// FormatGIF exports a palette animation.
	FormatGIF ExportFormat = "gif"
	// FormatAPNG exports a full-color animation.
	FormatAPNG ExportFormat = "apng"
	// FormatBundle exports a zip archive with both animations, per-frame
	// assets, metadata, and an optional viewer document.
	FormatBundle ExportFormat = "bundle"
)

// RecorderState is the recording lifecycle state.
type RecorderState string

const (
	// StateIdle means no active reel exists.
	StateIdle RecorderState = "idle"
	// StateRecording means a reel exists and accepts frames.
	StateRecording RecorderState = "recording"
	// StateArmed means the next qualifying interaction triggers a capture
	// sequence and then auto-disarms. Armed is a sub-state of recording.
	StateArmed RecorderState = "armed"
)

// Interaction describes one pointer interaction on the surface.
type Interaction struct {
	ViewportCoords Point      `json:"viewport_coords"`
	RelativeCoords Point      `json:"relative_coords"`
	ElementPath    string     `json:"element_path"`
	Button         ButtonCode `json:"button"`
	// AnchorOffset is the click position relative to the target node's
	// bounding box at interaction time, used to re-project the marker after
	// obfuscation may have reflowed the node.
	AnchorOffset Point `json:"anchor_offset"`
}
