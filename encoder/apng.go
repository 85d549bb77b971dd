package encoder

import (
	"bytes"
	"fmt"

	"github.com/kettek/apng"

	"pkt.systems/framereel/schema"
)

// EncodeAPNG encodes the frames as one full-color animation. No palette
// quantization; delays come from the same clamped timestamp diffs as the
// palette path. Zero frames is an error, never an empty artifact.
func EncodeAPNG(frames []schema.Frame, opts Options) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: apng encode needs at least one frame", schema.ErrNoFrames)
	}
	_ = normalizeOptions(opts)
	images, err := decodeFrames(frames)
	if err != nil {
		return nil, err
	}
	delays := frameDelays(frames)

	anim := apng.APNG{Frames: make([]apng.Frame, 0, len(images))}
	for i, img := range images {
		anim.Frames = append(anim.Frames, apng.Frame{
			Image: img,
			// Delay as a millisecond fraction.
			DelayNumerator:   uint16(delays[i].Milliseconds()),
			DelayDenominator: 1000,
		})
	}

	var buf bytes.Buffer
	if err := apng.Encode(&buf, anim); err != nil {
		return nil, fmt.Errorf("apng encode: %w", err)
	}
	return buf.Bytes(), nil
}
