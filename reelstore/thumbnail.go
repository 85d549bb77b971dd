package reelstore

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// thumbnailWidth is the stored thumbnail width in pixels. Height follows the
// source aspect ratio.
const thumbnailWidth = 160

// makeThumbnail downscales the first frame of a reel into a small PNG for
// listings. Sources at or below the target width are stored as-is.
func makeThumbnail(frame []byte) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	if bounds.Dx() <= thumbnailWidth || bounds.Dx() == 0 {
		return frame, nil
	}
	height := bounds.Dy() * thumbnailWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, thumbnailWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
