package broadcast

import (
	"testing"

	"github.com/wfunc/gameclient/models"
)

func TestViewBroadcaster_PublishAndReceive(t *testing.T) {
	b := NewViewBroadcaster()
	ch := b.Subscribe("ui", 4)

	b.Publish(models.SessionView{Phase: "lobby", CurrentRoomID: "r1"})

	select {
	case view := <-ch:
		if view.Phase != "lobby" || view.CurrentRoomID != "r1" {
			t.Errorf("Received wrong view: %+v", view)
		}
	default:
		t.Fatal("Expected a buffered view frame")
	}
}

func TestViewBroadcaster_SlowWatcherDropsFrames(t *testing.T) {
	b := NewViewBroadcaster()
	ch := b.Subscribe("slow", 1)

	// The second publish must not block; the frame is dropped instead.
	b.Publish(models.SessionView{Phase: "lobby"})
	b.Publish(models.SessionView{Phase: "in_progress"})

	view := <-ch
	if view.Phase != "lobby" {
		t.Errorf("Expected the first frame, got %+v", view)
	}

	select {
	case extra := <-ch:
		t.Errorf("Expected the overflow frame to be dropped, got %+v", extra)
	default:
	}
}

func TestViewBroadcaster_Unsubscribe(t *testing.T) {
	b := NewViewBroadcaster()
	ch := b.Subscribe("ui", 1)
	b.Unsubscribe("ui")

	b.Publish(models.SessionView{Phase: "lobby"})

	// The channel is closed on unsubscribe; no frame arrives after it.
	if view, ok := <-ch; ok {
		t.Errorf("Expected a closed channel, got %+v", view)
	}
}
