package core

import (
	"pkt.systems/framereel/reelstore"
	"pkt.systems/pslog"
)

// ServiceDeps captures dependencies for the recorder service. Surface and
// Renderer are required; the rest are optional.
type ServiceDeps struct {
	Surface   Surface
	Renderer  Renderer
	Store     *reelstore.Store
	EventSink EventSink
	Clock     Clock
	Logger    pslog.Logger
}
