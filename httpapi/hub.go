package httpapi

import (
	"sync"
	"time"

	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64                   `json:"seq"`
	Type      schema.RecorderEventType `json:"type"`
	State     schema.RecorderState     `json:"state"`
	Reel      schema.ReelSummary       `json:"reel"`
	Frame     *schema.FrameID          `json:"frame,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// Hub broadcasts recorder events to SSE subscribers with bounded replay
// history.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int, logger pslog.Logger) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		log:         logger,
	}
}

// OnRecorderEvent implements core.EventSink.
func (h *Hub) OnRecorderEvent(event schema.RecorderEvent) {
	stream := StreamEvent{
		Type:      event.Type,
		State:     event.State,
		Reel:      stripThumbnail(event.Reel),
		Timestamp: time.Now(),
	}
	if event.Frame != nil {
		// Frame payloads never go over the event stream; clients fetch
		// images through the reel endpoints.
		id := event.Frame.ID
		stream.Frame = &id
	}
	h.publish(stream)
}

// Subscribe registers a subscriber and returns its channel, an unsubscribe
// function, the current sequence number, and the replayable history.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64, []StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), h.history...)
	seq := h.seq
	if h.log != nil {
		h.log.Info("hub subscribe", "subs", len(h.subs), "history", len(history))
	}
	unsub := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		remaining := len(h.subs)
		h.mu.Unlock()
		if h.log != nil {
			h.log.Info("hub unsubscribe", "subs", remaining)
		}
	}
	return ch, unsub, seq, history
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	// Deliver while holding the lock: the sends never block, and unsubscribe
	// closes channels under the same lock, so no send can race a close.
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 && h.log != nil {
		h.log.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

func stripThumbnail(summary schema.ReelSummary) schema.ReelSummary {
	summary.Thumbnail = nil
	return summary
}
