// Package encoder turns ordered frame sequences into animated artifacts.
// Two independent paths share the same input contract: a palette animation
// (GIF) and a full-color animation (APNG).
package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"

	xdraw "golang.org/x/image/draw"

	"pkt.systems/framereel/schema"
)

// Options tune the encoders and the size heuristics.
type Options struct {
	// MaxColors bounds the palette of the palette-animation path. Values
	// outside [2, 256] are clamped.
	MaxColors int
	// Dither enables error-diffusion dithering during palettization.
	Dither bool
	// CompressionLevel influences the full-color path's size estimate,
	// 0 (none) through 9 (max).
	CompressionLevel int
}

const (
	// minFrameDelay and maxFrameDelay clamp the inter-frame delay derived
	// from timestamp diffs.
	minFrameDelay = 10 * time.Millisecond
	maxFrameDelay = 10 * time.Second
	// lastFrameDelay is the delay of the final frame, which has no
	// successor to diff against.
	lastFrameDelay = 100 * time.Millisecond
)

func normalizeOptions(opts Options) Options {
	if opts.MaxColors <= 0 {
		opts.MaxColors = 256
	}
	if opts.MaxColors < 2 {
		opts.MaxColors = 2
	}
	if opts.MaxColors > 256 {
		opts.MaxColors = 256
	}
	if opts.CompressionLevel < 0 {
		opts.CompressionLevel = 0
	}
	if opts.CompressionLevel > 9 {
		opts.CompressionLevel = 9
	}
	return opts
}

// frameDelays derives per-frame display delays from consecutive timestamp
// diffs, clamped to [minFrameDelay, maxFrameDelay]. The last frame gets
// lastFrameDelay.
func frameDelays(frames []schema.Frame) []time.Duration {
	delays := make([]time.Duration, len(frames))
	for i := range frames {
		if i == len(frames)-1 {
			delays[i] = lastFrameDelay
			continue
		}
		d := frames[i+1].Timestamp.Sub(frames[i].Timestamp)
		if d < minFrameDelay {
			d = minFrameDelay
		}
		if d > maxFrameDelay {
			d = maxFrameDelay
		}
		delays[i] = d
	}
	return delays
}

// decodeFrames decodes every frame payload, scaling any frame whose
// dimensions differ from the first frame so the animation has a stable
// canvas. Decode failures are wrapped with the frame index.
func decodeFrames(frames []schema.Frame) ([]image.Image, error) {
	images := make([]image.Image, len(frames))
	var canvas image.Rectangle
	for i, frame := range frames {
		img, err := png.Decode(bytes.NewReader(frame.Image))
		if err != nil {
			return nil, fmt.Errorf("frame %d: decode: %w", i, err)
		}
		if i == 0 {
			canvas = img.Bounds()
		} else if !img.Bounds().Size().Eq(canvas.Size()) {
			img = scaleTo(img, canvas)
		}
		images[i] = img
	}
	return images, nil
}

func scaleTo(src image.Image, canvas image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, canvas.Dx(), canvas.Dy()))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// OptimizeFrames drops every frame whose raw payload is byte-identical to
// the previously kept frame. Order-preserving and pure; the first frame of a
// non-empty input is always kept.
func OptimizeFrames(frames []schema.Frame) []schema.Frame {
	if len(frames) < 2 {
		return frames
	}
	kept := make([]schema.Frame, 0, len(frames))
	kept = append(kept, frames[0])
	for _, frame := range frames[1:] {
		if bytes.Equal(frame.Image, kept[len(kept)-1].Image) {
			continue
		}
		kept = append(kept, frame)
	}
	return kept
}

// Size-estimate factors. Heuristics for UI display before committing to a
// real encode; directionally correct, not accurate.
const (
	gifBaseFactor      = 0.20
	gifColorFactor     = 0.25
	apngBaseFactor     = 1.10
	apngCompressFactor = 0.06
	metadataPerFrame   = 512
	metadataBase       = 1024
	viewerBytes        = 4096
)

// EstimateEncodedSize predicts the encoded animation size for one format
// from the raw frame payload sizes. Monotonically increasing in frame
// count; more colors grow the palette path, higher compression shrinks the
// full-color path.
func EstimateEncodedSize(frames []schema.Frame, format schema.ExportFormat, opts Options) int64 {
	if len(frames) == 0 {
		return 0
	}
	opts = normalizeOptions(opts)
	var total float64
	for _, frame := range frames {
		total += float64(len(frame.Image))
	}
	switch format {
	case schema.FormatAPNG:
		factor := apngBaseFactor - apngCompressFactor*float64(opts.CompressionLevel)
		return int64(total * factor)
	default:
		factor := gifBaseFactor + gifColorFactor*float64(opts.MaxColors)/256
		return int64(total * factor)
	}
}

// EstimateExportSize predicts the size of a full export artifact. Bundle
// estimates cover both animations, the per-frame assets, the viewer, and
// optionally the metadata document.
func EstimateExportSize(reel schema.Reel, format schema.ExportFormat, includeMetadata bool, opts Options) int64 {
	switch format {
	case schema.FormatBundle:
		var raw int64
		for _, frame := range reel.Frames {
			raw += int64(len(frame.Image))
		}
		size := EstimateEncodedSize(reel.Frames, schema.FormatGIF, opts)
		size += EstimateEncodedSize(reel.Frames, schema.FormatAPNG, opts)
		size += raw // per-frame stills
		size += EstimateEncodedSize(reel.Frames, schema.FormatGIF, opts) // per-frame single-frame animations
		size += viewerBytes
		if includeMetadata {
			size += metadataBase + metadataPerFrame*int64(len(reel.Frames))
		}
		return size
	case schema.FormatAPNG:
		return EstimateEncodedSize(reel.Frames, schema.FormatAPNG, opts)
	default:
		return EstimateEncodedSize(reel.Frames, schema.FormatGIF, opts)
	}
}
