package export

import (
	"encoding/json"
	"time"

	"pkt.systems/framereel/schema"
)

// reelDocument is the exported metadata JSON layout: the reel envelope, the
// derived metadata, the frame list, and the capture-time settings snapshot.
type reelDocument struct {
	Reel     reelSection         `json:"reel"`
	Metadata metadataSection     `json:"metadata"`
	Frames   []frameDocument     `json:"frames"`
	Settings schema.ReelSettings `json:"settings"`
}

type reelSection struct {
	ID          schema.ReelID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	FrameCount  int           `json:"frame_count"`
}

type metadataSection struct {
	// Duration is unit-suffixed ("1.5s"), not a bare number.
	Duration     string           `json:"duration"`
	ClickCount   int              `json:"click_count"`
	ViewportSize schema.Size      `json:"viewport_size"`
	SurfaceID    schema.SurfaceID `json:"surface_id,omitempty"`
}

type frameDocument struct {
	ID             schema.FrameID      `json:"id"`
	Order          int                 `json:"order"`
	Timestamp      time.Time           `json:"timestamp"`
	CaptureType    schema.CapturePhase `json:"capture_type"`
	ElementPath    string              `json:"element_path,omitempty"`
	Coordinates    frameCoordinates    `json:"coordinates"`
	ButtonType     string              `json:"button_type"`
	ViewportSize   schema.Size         `json:"viewport_size"`
	ScrollPosition schema.Point        `json:"scroll_position"`
	HTMLSnapshot   string              `json:"html_snapshot,omitempty"`
}

type frameCoordinates struct {
	Viewport schema.Point `json:"viewport"`
	Relative schema.Point `json:"relative"`
}

// metadataJSON renders the human-readable metadata document for a reel.
// HTML snapshots are only included when requested; they can dominate the
// document size.
func metadataJSON(reel schema.Reel, includeHTML bool) ([]byte, error) {
	doc := reelDocument{
		Reel: reelSection{
			ID:          reel.ID,
			Title:       reel.Title,
			Description: reel.Description,
			StartTime:   reel.StartTime,
			EndTime:     reel.EndTime,
			FrameCount:  len(reel.Frames),
		},
		Metadata: metadataSection{
			Duration:     reel.Metadata.Duration.String(),
			ClickCount:   reel.Metadata.ClickCount,
			ViewportSize: reel.Metadata.ViewportSize,
			SurfaceID:    reel.Metadata.SurfaceID,
		},
		Frames:   make([]frameDocument, 0, len(reel.Frames)),
		Settings: reel.Settings,
	}
	for _, frame := range reel.Frames {
		fd := frameDocument{
			ID:          frame.ID,
			Order:       frame.Order,
			Timestamp:   frame.Timestamp,
			CaptureType: frame.Metadata.Phase,
			ElementPath: frame.Metadata.ElementPath,
			Coordinates: frameCoordinates{
				Viewport: frame.Metadata.ViewportCoords,
				Relative: frame.Metadata.RelativeCoords,
			},
			ButtonType:     frame.Metadata.Button.Name(),
			ViewportSize:   frame.Metadata.ViewportSize,
			ScrollPosition: frame.Metadata.ScrollOffset,
		}
		if includeHTML {
			fd.HTMLSnapshot = frame.Metadata.HTMLSnapshot
		}
		doc.Frames = append(doc.Frames, fd)
	}
	return json.MarshalIndent(doc, "", "  ")
}
