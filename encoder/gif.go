package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"

	"github.com/ericpauley/go-quantize/quantize"

	"pkt.systems/framereel/schema"
)

// EncodeGIF encodes the frames as one palette animation. Each frame is
// quantized to at most opts.MaxColors colors with a median-cut palette;
// delays come from the clamped timestamp diffs. Zero frames is an error,
// never an empty artifact.
func EncodeGIF(frames []schema.Frame, opts Options) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: gif encode needs at least one frame", schema.ErrNoFrames)
	}
	opts = normalizeOptions(opts)
	images, err := decodeFrames(frames)
	if err != nil {
		return nil, err
	}
	delays := frameDelays(frames)

	anim := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(images)),
		Delay:     make([]int, 0, len(images)),
		LoopCount: 0,
	}
	quantizer := quantize.MedianCutQuantizer{}
	for i, img := range images {
		paletted, err := palettize(img, quantizer, opts)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		anim.Image = append(anim.Image, paletted)
		// GIF delays are in hundredths of a second.
		anim.Delay = append(anim.Delay, int(delays[i].Milliseconds()/10))
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("gif encode: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeStillGIF encodes a single frame as a one-frame palette animation,
// used for the bundle's per-frame assets.
func EncodeStillGIF(frame schema.Frame, opts Options) ([]byte, error) {
	return EncodeGIF([]schema.Frame{frame}, opts)
}

func palettize(img image.Image, quantizer quantize.MedianCutQuantizer, opts Options) (*image.Paletted, error) {
	palette := quantizer.Quantize(make(color.Palette, 0, opts.MaxColors), img)
	if len(palette) == 0 {
		return nil, fmt.Errorf("quantize produced empty palette")
	}
	bounds := img.Bounds()
	paletted := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), palette)
	if opts.Dither {
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), img, bounds.Min)
	} else {
		draw.Draw(paletted, paletted.Bounds(), img, bounds.Min, draw.Src)
	}
	return paletted, nil
}
