package core

import (
	"context"
	"time"

	"pkt.systems/framereel/schema"
)

// Rect is a node bounding box in document coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// MarkerSpec describes the click position marker drawn into a capture.
type MarkerSpec struct {
	// Position is the marker center in document coordinates, already
	// re-projected against the target node's current bounds.
	Position schema.Point
	Size     int
	Color    string
}

// NodeKind classifies a maskable node for obfuscation policy.
type NodeKind string

const (
	// NodeText carries visible text content.
	NodeText NodeKind = "text"
	// NodeImage carries raster or vector imagery.
	NodeImage NodeKind = "image"
	// NodeInput carries user-entered values.
	NodeInput NodeKind = "input"
	// NodeScript is script or style content; never masked, never descended.
	NodeScript NodeKind = "script"
)

// MaskTarget is one node the surface reports as eligible for obfuscation.
type MaskTarget struct {
	Path string
	Kind NodeKind
	// OptIn is an explicit always-mask marker on the node.
	OptIn bool
	// OptOut is an explicit never-mask marker; beats OptIn.
	OptOut bool
}

// RenderOptions parameterize one render call.
type RenderOptions struct {
	Scale           float64
	MaxWidth        int
	MaxHeight       int
	BackgroundColor string
}

// Renderer rasterizes the surface's current state into an encoded PNG.
// Renders of an unchanged surface must be byte-identical.
type Renderer interface {
	Render(ctx context.Context, opts RenderOptions) ([]byte, error)
}

// Surface is the live visual surface being recorded. All mutating calls are
// reversible; the capture engine guarantees it leaves the surface exactly as
// it found it.
type Surface interface {
	Viewport(ctx context.Context) (schema.Size, error)
	ScrollOffset(ctx context.Context) (schema.Point, error)
	// NodeBounds reports the current bounding box of the node at path.
	// ok is false when the node is no longer attached.
	NodeBounds(ctx context.Context, path string) (Rect, bool, error)
	// ExcludedNodes lists nodes tagged as capture-excluded.
	ExcludedNodes(ctx context.Context) ([]string, error)
	// SetNodeHidden toggles visibility without removing the node, so layout
	// is preserved.
	SetNodeHidden(ctx context.Context, path string, hidden bool) error
	// FixedNodes lists nodes with fixed layout positioning.
	FixedNodes(ctx context.Context) ([]string, error)
	// SetNodeTranslation applies a pixel translation to a node; the zero
	// point clears it.
	SetNodeTranslation(ctx context.Context, path string, offset schema.Point) error
	PlaceMarker(ctx context.Context, spec MarkerSpec) error
	RemoveMarker(ctx context.Context) error
	// MaskTargets lists nodes eligible for obfuscation, with their policy
	// markers. Script/style subtrees are never reported.
	MaskTargets(ctx context.Context) ([]MaskTarget, error)
	// ApplyMask masks the node at path, preserving its layout geometry.
	ApplyMask(ctx context.Context, path string) error
	// RemoveMask unmasks the node at path. ok is false when the node has
	// since been detached; that is not an error.
	RemoveMask(ctx context.Context, path string) (bool, error)
	// ReplayInteraction re-dispatches a synthetic equivalent of a suppressed
	// interaction so the surface still reacts to the user.
	ReplayInteraction(ctx context.Context, ic schema.Interaction) error
	// CaptureHTML serializes the surface's current markup.
	CaptureHTML(ctx context.Context) (string, error)
}

// Clock abstracts time for the settlement loop so tests run without
// wall-clock waits.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
