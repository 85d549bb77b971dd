package framereel

import (
	"pkt.systems/framereel/core"
	"pkt.systems/framereel/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnRecorderEvent(event schema.RecorderEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnRecorderEvent(event)
	}
}
