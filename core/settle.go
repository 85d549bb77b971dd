package core

import (
	"bytes"
	"context"
	"time"

	"pkt.systems/framereel/internal/logx"
	"pkt.systems/framereel/schema"
)

// settlePolicy is the cancellable retry policy driving settlement detection.
type settlePolicy struct {
	// Delay is the initial wait after the interaction before the first
	// detection render.
	Delay time.Duration
	// Interval is the wait between detection renders.
	Interval time.Duration
	// MaxDuration bounds the whole loop, measured from after the initial
	// delay.
	MaxDuration time.Duration
	// PromoteLastFrame captures a final frame from the last detection state
	// when the budget is exhausted, instead of yielding nothing.
	PromoteLastFrame bool
}

// settleResult reports the outcome of one detection loop.
type settleResult struct {
	// Image is the final configured capture; nil when the loop timed out and
	// promotion is disabled.
	Image    []byte
	Metadata schema.FrameMetadata
	Settled  bool
	Attempts int
}

// detectAndCapture waits for the surface to stop changing between successive
// bare renders, then performs one final capture with the configured
// obfuscation and no marker. Detection renders are compared byte for byte and
// are never persisted. A loop that exhausts its budget without two identical
// consecutive renders yields no frame (settlement timeout is an outcome, not
// an error) unless the policy promotes the last detection state.
func (s *service) detectAndCapture(ctx context.Context, opts captureOptions, policy settlePolicy) (settleResult, error) {
	log := logx.Ctx(ctx)
	if err := s.clock.Sleep(ctx, policy.Delay); err != nil {
		return settleResult{}, err
	}

	deadline := s.clock.Now().Add(policy.MaxDuration)
	var previous []byte
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return settleResult{}, err
		}
		current, err := s.engine.detectionRender(ctx, opts)
		if err != nil {
			return settleResult{}, err
		}
		attempts++
		if previous != nil && bytes.Equal(previous, current) {
			log.Debug("settlement detected", "attempts", attempts)
			image, meta, err := s.engine.capture(ctx, opts, nil)
			if err != nil {
				return settleResult{}, err
			}
			return settleResult{Image: image, Metadata: meta, Settled: true, Attempts: attempts}, nil
		}
		previous = current
		if !s.clock.Now().Add(policy.Interval).Before(deadline) {
			break
		}
		if err := s.clock.Sleep(ctx, policy.Interval); err != nil {
			return settleResult{}, err
		}
	}

	log.Warn("settlement timed out", "attempts", attempts, "max_duration_ms", policy.MaxDuration.Milliseconds(), "promote", policy.PromoteLastFrame)
	if !policy.PromoteLastFrame {
		return settleResult{Attempts: attempts}, nil
	}
	image, meta, err := s.engine.capture(ctx, opts, nil)
	if err != nil {
		return settleResult{}, err
	}
	return settleResult{Image: image, Metadata: meta, Settled: false, Attempts: attempts}, nil
}
