package logx

import (
	"context"

	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	reelKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithReel annotates the logger with the reel id when available.
func WithReel(log pslog.Logger, reelID schema.ReelID) pslog.Logger {
	if reelID != "" {
		log = log.With("reel", reelID)
	}
	return log
}

// WithReelFrame annotates the logger with reel and frame identifiers.
func WithReelFrame(log pslog.Logger, reelID schema.ReelID, frameID schema.FrameID) pslog.Logger {
	log = WithReel(log, reelID)
	if frameID != "" {
		log = log.With("frame", frameID)
	}
	return log
}

// ContextWithReel stores the reel marker on the context for log de-duplication.
func ContextWithReel(ctx context.Context, reelID schema.ReelID) context.Context {
	if ctx == nil || reelID == "" {
		return ctx
	}
	return context.WithValue(ctx, reelKey, reelID)
}

// CtxWithReel annotates the context logger with the reel id unless the
// context already carries the same marker.
func CtxWithReel(ctx context.Context, reelID schema.ReelID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if reelID != "" {
		if current, ok := ctx.Value(reelKey).(schema.ReelID); ok && current == reelID {
			return log
		}
		log = log.With("reel", reelID)
	}
	return log
}

// ContextWithReelLogger attaches the logger and reel marker to the context.
func ContextWithReelLogger(ctx context.Context, log pslog.Logger, reelID schema.ReelID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithReel(ctx, reelID)
}
