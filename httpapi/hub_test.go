package httpapi

import (
	"sync"
	"testing"

	"pkt.systems/framereel/schema"
)

func TestHubSequencesAndReplays(t *testing.T) {
	hub := NewHub(10, nil)

	for i := 0; i < 3; i++ {
		hub.OnRecorderEvent(schema.RecorderEvent{Type: schema.EventFrameAdded, State: schema.StateRecording})
	}

	replay := hub.Replay(0)
	if len(replay) != 3 {
		t.Fatalf("expected 3 replayed events, got %d", len(replay))
	}
	for i, event := range replay {
		if event.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, event.Seq)
		}
	}

	replay = hub.Replay(2)
	if len(replay) != 1 || replay[0].Seq != 3 {
		t.Fatalf("replay after 2 returned %v", replay)
	}
}

func TestHubBoundsHistory(t *testing.T) {
	hub := NewHub(5, nil)

	for i := 0; i < 12; i++ {
		hub.OnRecorderEvent(schema.RecorderEvent{Type: schema.EventFrameAdded})
	}

	replay := hub.Replay(0)
	if len(replay) != 5 {
		t.Fatalf("expected the history capped at 5, got %d", len(replay))
	}
	if replay[0].Seq != 8 || replay[4].Seq != 12 {
		t.Fatalf("history window %d..%d", replay[0].Seq, replay[4].Seq)
	}
}

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(10, nil)

	ch, unsubscribe, seq, history := hub.Subscribe()
	defer unsubscribe()
	if seq != 0 || len(history) != 0 {
		t.Fatalf("fresh hub reported seq %d, history %d", seq, len(history))
	}

	hub.OnRecorderEvent(schema.RecorderEvent{Type: schema.EventArmed, State: schema.StateArmed})
	event := <-ch
	if event.Type != schema.EventArmed || event.State != schema.StateArmed {
		t.Fatalf("delivered %+v", event)
	}
	if event.Seq != 1 {
		t.Fatalf("delivered seq %d", event.Seq)
	}
}

func TestHubStripsFramePayloads(t *testing.T) {
	hub := NewHub(10, nil)

	frame := schema.Frame{ID: "frame-1", Image: []byte("big payload")}
	hub.OnRecorderEvent(schema.RecorderEvent{
		Type:  schema.EventFrameAdded,
		State: schema.StateRecording,
		Reel:  schema.ReelSummary{ID: "reel-1", Thumbnail: []byte("thumb")},
		Frame: &frame,
	})

	replay := hub.Replay(0)
	if len(replay) != 1 {
		t.Fatalf("expected 1 event, got %d", len(replay))
	}
	event := replay[0]
	if event.Frame == nil || *event.Frame != "frame-1" {
		t.Fatalf("frame reference %v", event.Frame)
	}
	if event.Reel.Thumbnail != nil {
		t.Fatalf("thumbnail must not go over the stream")
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(10, nil)

	ch, unsubscribe, _, _ := hub.Subscribe()
	unsubscribe()
	if _, open := <-ch; open {
		t.Fatalf("channel must be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	hub.OnRecorderEvent(schema.RecorderEvent{Type: schema.EventDisarmed})
}

func TestHubUnsubscribeRacesPublish(t *testing.T) {
	hub := NewHub(10, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.OnRecorderEvent(schema.RecorderEvent{Type: schema.EventFrameAdded, State: schema.StateRecording})
		}
	}()

	// Churn subscribers while the publisher runs; a send racing a close
	// would panic here.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, unsubscribe, _, _ := hub.Subscribe()
				unsubscribe()
			}
		}()
	}
	wg.Wait()
	<-done
}
