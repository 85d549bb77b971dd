package core

import "pkt.systems/framereel/schema"

// EventSink receives recorder lifecycle notifications. Implementations must
// not block; the service calls them inline.
type EventSink interface {
	OnRecorderEvent(event schema.RecorderEvent)
}
