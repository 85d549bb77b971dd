package chromerender

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/chromedp/chromedp"
	xdraw "golang.org/x/image/draw"

	"pkt.systems/framereel/core"
)

// PageRenderer rasterizes the page viewport into PNG frames.
type PageRenderer struct {
	browser *Browser
}

var _ core.Renderer = (*PageRenderer)(nil)

// Render captures the current viewport as a PNG, then applies the scale and
// size bounds from opts. The DevTools screenshot of an unchanged page is
// byte-stable, which the settlement comparison depends on.
func (r *PageRenderer) Render(ctx context.Context, opts core.RenderOptions) ([]byte, error) {
	var shot []byte
	if err := r.browser.run(ctx, chromedp.CaptureScreenshot(&shot)); err != nil {
		return nil, err
	}
	if opts.Scale == 0 || opts.Scale == 1 {
		if opts.MaxWidth <= 0 && opts.MaxHeight <= 0 {
			return shot, nil
		}
	}
	return resize(shot, opts)
}

// resize decodes, scales, and re-encodes a screenshot. The scale factor is
// applied first, then the result is shrunk further if it exceeds the
// configured bounds. Aspect ratio is always preserved.
func resize(shot []byte, opts core.RenderOptions) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if opts.Scale > 0 && opts.Scale != 1 {
		width = int(float64(width) * opts.Scale)
		height = int(float64(height) * opts.Scale)
	}
	if opts.MaxWidth > 0 && width > opts.MaxWidth {
		height = height * opts.MaxWidth / width
		width = opts.MaxWidth
	}
	if opts.MaxHeight > 0 && height > opts.MaxHeight {
		width = width * opts.MaxHeight / height
		height = opts.MaxHeight
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == bounds.Dx() && height == bounds.Dy() {
		return shot, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
