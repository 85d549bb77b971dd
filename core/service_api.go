package core

import (
	"context"

	"pkt.systems/framereel/schema"
)

// Service is the transport-agnostic API for recording, exporting, and
// managing reels. This is the command surface consumed by the UI shell.
type Service interface {
	StartRecording(ctx context.Context, req schema.StartRecordingRequest) (schema.StartRecordingResponse, error)
	Arm(ctx context.Context, req schema.ArmRequest) (schema.ArmResponse, error)
	Disarm(ctx context.Context, req schema.DisarmRequest) (schema.DisarmResponse, error)
	AddFrame(ctx context.Context, req schema.AddFrameRequest) (schema.AddFrameResponse, error)
	StopRecording(ctx context.Context, req schema.StopRecordingRequest) (schema.StopRecordingResponse, error)
	HandleInteraction(ctx context.Context, req schema.HandleInteractionRequest) (schema.HandleInteractionResponse, error)
	RecorderState(ctx context.Context, req schema.RecorderStateRequest) (schema.RecorderStateResponse, error)
	ExportReel(ctx context.Context, req schema.ExportReelRequest) (schema.ExportReelResponse, error)
	ListReels(ctx context.Context, req schema.ListReelsRequest) (schema.ListReelsResponse, error)
	GetReel(ctx context.Context, req schema.GetReelRequest) (schema.GetReelResponse, error)
	UpdateReel(ctx context.Context, req schema.UpdateReelRequest) (schema.UpdateReelResponse, error)
	DeleteReel(ctx context.Context, req schema.DeleteReelRequest) (schema.DeleteReelResponse, error)
	CleanupReels(ctx context.Context, req schema.CleanupReelsRequest) (schema.CleanupReelsResponse, error)
	StorageInfo(ctx context.Context, req schema.StorageInfoRequest) (schema.StorageInfoResponse, error)
	// Flush persists the in-progress reel best-effort, for host shutdown.
	Flush(ctx context.Context) error
}
