package core

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"pkt.systems/framereel/internal/logx"
	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

// captureOptions parameterize one capture, derived from the reel's settings
// snapshot.
type captureOptions struct {
	Scale       float64
	MaxWidth    int
	MaxHeight   int
	Obfuscate   bool
	Obfuscation schema.ObfuscationPolicy
	MarkerSize  int
	MarkerColor string
}

// markerRequest carries the interaction context needed to place a marker.
// AnchorOffset was captured once, at original-click time, relative to the
// clicked node's bounding box; the engine re-projects it against the node's
// current bounds at capture time.
type markerRequest struct {
	Interaction schema.Interaction
}

type captureEngine struct {
	surface  Surface
	renderer Renderer
	obf      *obfuscator
	logger   pslog.Logger
}

func newCaptureEngine(surface Surface, renderer Renderer, logger pslog.Logger) *captureEngine {
	return &captureEngine{
		surface:  surface,
		renderer: renderer,
		obf:      &obfuscator{surface: surface, logger: logger},
		logger:   logger,
	}
}

// capture performs one render against the live surface, with excluded-node
// hiding, optional obfuscation, optional marker placement, and fixed-position
// compensation. Every surface mutation is reverted before capture returns,
// whether or not the render succeeds. Cleanup order: translations, marker,
// obfuscation, excluded-node visibility.
func (e *captureEngine) capture(ctx context.Context, opts captureOptions, marker *markerRequest) (imageData []byte, meta schema.FrameMetadata, err error) {
	log := logx.Ctx(ctx)

	excluded, err := e.surface.ExcludedNodes(ctx)
	if err != nil {
		return nil, schema.FrameMetadata{}, fmt.Errorf("capture excluded nodes: %w", err)
	}
	hidden := make([]string, 0, len(excluded))
	defer func() {
		for i := len(hidden) - 1; i >= 0; i-- {
			if restoreErr := e.surface.SetNodeHidden(ctx, hidden[i], false); restoreErr != nil {
				log.Warn("capture unhide failed", "path", hidden[i], "err", restoreErr)
			}
		}
	}()
	for _, path := range excluded {
		if err := e.surface.SetNodeHidden(ctx, path, true); err != nil {
			return nil, schema.FrameMetadata{}, fmt.Errorf("capture hide %s: %w", path, err)
		}
		hidden = append(hidden, path)
	}

	var backup *ObfuscationBackup
	defer func() {
		e.obf.restore(ctx, backup)
	}()
	if opts.Obfuscate {
		backup, err = e.obf.mask(ctx, opts.Obfuscation)
		if err != nil {
			return nil, schema.FrameMetadata{}, fmt.Errorf("capture obfuscation: %w", err)
		}
	}

	scroll, err := e.surface.ScrollOffset(ctx)
	if err != nil {
		return nil, schema.FrameMetadata{}, fmt.Errorf("capture scroll offset: %w", err)
	}
	viewport, err := e.surface.Viewport(ctx)
	if err != nil {
		return nil, schema.FrameMetadata{}, fmt.Errorf("capture viewport: %w", err)
	}

	// Marker placement must follow obfuscation: masking can resize or reflow
	// the clicked node, so the anchor offset is re-projected against the
	// node's current bounds plus the scroll offset at capture time.
	markerPlaced := false
	defer func() {
		if markerPlaced {
			if removeErr := e.surface.RemoveMarker(ctx); removeErr != nil {
				log.Warn("capture marker remove failed", "err", removeErr)
			}
		}
	}()
	if marker != nil {
		pos := e.projectMarker(ctx, marker.Interaction, scroll)
		if err := e.surface.PlaceMarker(ctx, MarkerSpec{
			Position: pos,
			Size:     opts.MarkerSize,
			Color:    opts.MarkerColor,
		}); err != nil {
			return nil, schema.FrameMetadata{}, fmt.Errorf("capture marker: %w", err)
		}
		markerPlaced = true
	}

	// The renderer captures the scrolled document by translating it by
	// -scroll, which would visually drift fixed-position nodes; give each a
	// compensating inverse translation for the duration of the render.
	translated, err := e.compensateFixed(ctx, scroll)
	defer func() {
		for i := len(translated) - 1; i >= 0; i-- {
			if clearErr := e.surface.SetNodeTranslation(ctx, translated[i], schema.Point{}); clearErr != nil {
				log.Warn("capture translation clear failed", "path", translated[i], "err", clearErr)
			}
		}
	}()
	if err != nil {
		return nil, schema.FrameMetadata{}, fmt.Errorf("capture fixed compensation: %w", err)
	}

	data, err := e.renderer.Render(ctx, RenderOptions{
		Scale:     opts.Scale,
		MaxWidth:  opts.MaxWidth,
		MaxHeight: opts.MaxHeight,
	})
	if err != nil {
		return nil, schema.FrameMetadata{}, fmt.Errorf("capture render: %w", err)
	}
	if cfg, cfgErr := png.DecodeConfig(bytes.NewReader(data)); cfgErr == nil {
		// A near-empty render may be a legitimate 1-pixel capture, so it is
		// not treated as fatal.
		if cfg.Width*cfg.Height <= 1 {
			log.Warn("capture produced degenerate render", "width", cfg.Width, "height", cfg.Height)
		}
	}

	meta = schema.FrameMetadata{
		ViewportSize: viewport,
		ScrollOffset: scroll,
		Phase:        schema.PhaseManual,
		Button:       schema.ButtonSynthetic,
	}
	if marker != nil {
		ic := marker.Interaction
		meta.ViewportCoords = ic.ViewportCoords
		meta.RelativeCoords = ic.RelativeCoords
		meta.ElementPath = ic.ElementPath
		meta.Button = ic.Button
	}
	return data, meta, nil
}

// projectMarker computes the marker's document position. When the clicked
// node is still attached, the original anchor offset is applied to its
// current bounding box; otherwise the original viewport coordinates plus the
// current scroll offset are used as a fallback.
func (e *captureEngine) projectMarker(ctx context.Context, ic schema.Interaction, scroll schema.Point) schema.Point {
	log := logx.Ctx(ctx)
	bounds, ok, err := e.surface.NodeBounds(ctx, ic.ElementPath)
	if err != nil {
		log.Warn("capture marker bounds lookup failed", "path", ic.ElementPath, "err", err)
		ok = false
	}
	if !ok {
		return schema.Point{
			X: ic.ViewportCoords.X + scroll.X,
			Y: ic.ViewportCoords.Y + scroll.Y,
		}
	}
	offset := ic.AnchorOffset
	if bounds.Width > 0 && offset.X > bounds.Width {
		offset.X = bounds.Width
	}
	if bounds.Height > 0 && offset.Y > bounds.Height {
		offset.Y = bounds.Height
	}
	return schema.Point{X: bounds.X + offset.X, Y: bounds.Y + offset.Y}
}

func (e *captureEngine) compensateFixed(ctx context.Context, scroll schema.Point) ([]string, error) {
	if scroll.X == 0 && scroll.Y == 0 {
		return nil, nil
	}
	fixed, err := e.surface.FixedNodes(ctx)
	if err != nil {
		return nil, err
	}
	translated := make([]string, 0, len(fixed))
	for _, path := range fixed {
		if err := e.surface.SetNodeTranslation(ctx, path, scroll); err != nil {
			return translated, err
		}
		translated = append(translated, path)
	}
	return translated, nil
}

// detectionRender performs a bare render for settlement comparison: no
// obfuscation, no marker, no exclusion handling. Toggling masking between
// renders would register as change and defeat the comparison.
func (e *captureEngine) detectionRender(ctx context.Context, opts captureOptions) ([]byte, error) {
	data, err := e.renderer.Render(ctx, RenderOptions{
		Scale:     opts.Scale,
		MaxWidth:  opts.MaxWidth,
		MaxHeight: opts.MaxHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("detection render: %w", err)
	}
	return data, nil
}

func frameTimestamp(clock Clock) time.Time {
	if clock == nil {
		return time.Now()
	}
	return clock.Now()
}
