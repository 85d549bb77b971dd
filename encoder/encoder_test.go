package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"pkt.systems/framereel/schema"
)

var frameBase = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func pngFrame(t *testing.T, order int, width, height int, shade uint8) schema.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode frame png: %v", err)
	}
	return schema.Frame{
		ID:        schema.FrameID(fmt.Sprintf("frame-%03d", order)),
		ReelID:    "reel-enc",
		Image:     buf.Bytes(),
		Timestamp: frameBase.Add(time.Duration(order) * 400 * time.Millisecond),
		Order:     order,
	}
}

func TestFrameDelays(t *testing.T) {
	frames := []schema.Frame{
		{Timestamp: frameBase},
		{Timestamp: frameBase.Add(2 * time.Millisecond)},     // diff below the floor
		{Timestamp: frameBase.Add(500 * time.Millisecond)},   // normal diff
		{Timestamp: frameBase.Add(30 * time.Second)},         // diff above the ceiling
		{Timestamp: frameBase.Add(31 * time.Second)},         // last frame
	}
	delays := frameDelays(frames)
	want := []time.Duration{
		minFrameDelay,
		498 * time.Millisecond,
		maxFrameDelay,
		maxFrameDelay,
		lastFrameDelay,
	}
	if len(delays) != len(want) {
		t.Fatalf("got %d delays, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestFrameDelaysSingleFrame(t *testing.T) {
	delays := frameDelays([]schema.Frame{{Timestamp: frameBase}})
	if len(delays) != 1 || delays[0] != lastFrameDelay {
		t.Fatalf("single-frame delays %v", delays)
	}
}

func TestOptimizeFramesDropsConsecutiveDuplicates(t *testing.T) {
	a := []byte("aaa")
	b := []byte("bbb")
	frames := []schema.Frame{
		{ID: "1", Image: a},
		{ID: "2", Image: a},
		{ID: "3", Image: b},
		{ID: "4", Image: b},
		{ID: "5", Image: a},
	}
	kept := OptimizeFrames(frames)
	var ids []schema.FrameID
	for _, frame := range kept {
		ids = append(ids, frame.ID)
	}
	want := []schema.FrameID{"1", "3", "5"}
	if len(ids) != len(want) {
		t.Fatalf("kept %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("kept %v, want %v", ids, want)
		}
	}
}

func TestOptimizeFramesKeepsShortInputs(t *testing.T) {
	if kept := OptimizeFrames(nil); len(kept) != 0 {
		t.Fatalf("nil input kept %d frames", len(kept))
	}
	one := []schema.Frame{{ID: "1", Image: []byte("a")}}
	if kept := OptimizeFrames(one); len(kept) != 1 {
		t.Fatalf("single input kept %d frames", len(kept))
	}
}

func TestEncodeGIF(t *testing.T) {
	frames := []schema.Frame{
		pngFrame(t, 0, 64, 48, 10),
		pngFrame(t, 1, 64, 48, 120),
		pngFrame(t, 2, 64, 48, 240),
	}
	data, err := EncodeGIF(frames, Options{MaxColors: 64})
	if err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(anim.Image) != 3 {
		t.Fatalf("expected 3 gif frames, got %d", len(anim.Image))
	}
	if anim.LoopCount != 0 {
		t.Fatalf("expected infinite loop, got %d", anim.LoopCount)
	}
	// 400ms diffs in hundredths of a second, 100ms for the last frame.
	wantDelays := []int{40, 40, 10}
	for i, delay := range anim.Delay {
		if delay != wantDelays[i] {
			t.Fatalf("gif delay %d = %d, want %d", i, delay, wantDelays[i])
		}
	}
	for i, img := range anim.Image {
		if len(img.Palette) > 64 {
			t.Fatalf("frame %d palette has %d colors, cap is 64", i, len(img.Palette))
		}
	}
}

func TestEncodeGIFRejectsEmptyInput(t *testing.T) {
	if _, err := EncodeGIF(nil, Options{}); !errors.Is(err, schema.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func TestEncodeGIFScalesMismatchedFrames(t *testing.T) {
	frames := []schema.Frame{
		pngFrame(t, 0, 64, 48, 10),
		pngFrame(t, 1, 32, 24, 120), // half-size frame scaled up to the canvas
	}
	data, err := EncodeGIF(frames, Options{})
	if err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	for i, img := range anim.Image {
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
			t.Fatalf("frame %d canvas %v", i, img.Bounds())
		}
	}
}

func TestEncodeStillGIF(t *testing.T) {
	data, err := EncodeStillGIF(pngFrame(t, 0, 16, 16, 50), Options{})
	if err != nil {
		t.Fatalf("encode still gif: %v", err)
	}
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode still gif: %v", err)
	}
	if len(anim.Image) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(anim.Image))
	}
}

func TestEncodeAPNG(t *testing.T) {
	frames := []schema.Frame{
		pngFrame(t, 0, 32, 32, 10),
		pngFrame(t, 1, 32, 32, 200),
	}
	data, err := EncodeAPNG(frames, Options{})
	if err != nil {
		t.Fatalf("encode apng: %v", err)
	}
	// The container is a valid PNG stream.
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode apng config: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 32 {
		t.Fatalf("apng canvas %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeAPNGRejectsEmptyInput(t *testing.T) {
	if _, err := EncodeAPNG(nil, Options{}); !errors.Is(err, schema.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func TestEncodeGIFWrapsDecodeFailure(t *testing.T) {
	frames := []schema.Frame{{ID: "bad", Image: []byte("not a png")}}
	if _, err := EncodeGIF(frames, Options{}); err == nil {
		t.Fatalf("expected a decode error")
	}
}

func TestEstimateEncodedSize(t *testing.T) {
	frames := []schema.Frame{
		pngFrame(t, 0, 64, 48, 10),
		pngFrame(t, 1, 64, 48, 120),
	}

	if size := EstimateEncodedSize(nil, schema.FormatGIF, Options{}); size != 0 {
		t.Fatalf("empty input estimate %d", size)
	}

	gifSize := EstimateEncodedSize(frames, schema.FormatGIF, Options{})
	apngSize := EstimateEncodedSize(frames, schema.FormatAPNG, Options{})
	if gifSize <= 0 || apngSize <= 0 {
		t.Fatalf("estimates must be positive, got gif=%d apng=%d", gifSize, apngSize)
	}

	// More frames, bigger estimate.
	more := append(append([]schema.Frame(nil), frames...), pngFrame(t, 2, 64, 48, 240))
	if EstimateEncodedSize(more, schema.FormatGIF, Options{}) <= gifSize {
		t.Fatalf("estimate must grow with frame count")
	}

	// A bigger palette grows the palette path.
	small := EstimateEncodedSize(frames, schema.FormatGIF, Options{MaxColors: 16})
	large := EstimateEncodedSize(frames, schema.FormatGIF, Options{MaxColors: 256})
	if small >= large {
		t.Fatalf("palette estimate: 16 colors %d, 256 colors %d", small, large)
	}

	// Higher compression shrinks the full-color path.
	loose := EstimateEncodedSize(frames, schema.FormatAPNG, Options{CompressionLevel: 1})
	tight := EstimateEncodedSize(frames, schema.FormatAPNG, Options{CompressionLevel: 9})
	if tight >= loose {
		t.Fatalf("compression estimate: level 1 %d, level 9 %d", loose, tight)
	}
}

func TestEstimateExportSizeOrdering(t *testing.T) {
	reel := schema.Reel{
		ID: "reel-est",
		Frames: []schema.Frame{
			pngFrame(t, 0, 64, 48, 10),
			pngFrame(t, 1, 64, 48, 120),
		},
	}

	gifSize := EstimateExportSize(reel, schema.FormatGIF, false, Options{})
	bundleSize := EstimateExportSize(reel, schema.FormatBundle, false, Options{})
	bundleWithMeta := EstimateExportSize(reel, schema.FormatBundle, true, Options{})

	if !(bundleWithMeta > bundleSize && bundleSize > gifSize && gifSize > 0) {
		t.Fatalf("expected bundle+metadata > bundle > gif > 0, got %d, %d, %d",
			bundleWithMeta, bundleSize, gifSize)
	}
}
