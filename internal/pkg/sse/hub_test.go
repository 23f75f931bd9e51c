package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesTopicSubscribersOnly(t *testing.T) {
	hub := NewHub()
	a, cleanupA := hub.Subscribe(KioskTopic("LOBBY"))
	defer cleanupA()
	b, cleanupB := hub.Subscribe(KioskTopic("GATE"))
	defer cleanupB()

	hub.Publish(KioskTopic("LOBBY"), "qr_session", map[string]string{"code": "ABC"})

	select {
	case ev := <-a:
		assert.Equal(t, "qr_session", ev.Event)
		assert.Equal(t, "kiosk:LOBBY", ev.Topic)
		assert.NotEmpty(t, ev.ID)
	default:
		t.Fatal("subscriber of LOBBY did not receive the event")
	}

	select {
	case ev := <-b:
		t.Fatalf("subscriber of GATE received %+v", ev)
	default:
	}
}

func TestHub_CleanupIsIdempotent(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe("kiosk:X")
	require.Equal(t, 1, hub.SubscriberCount("kiosk:X"))

	cleanup()
	cleanup()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.TotalSubscribers())
}

func TestHub_DropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe("kiosk:X")
	defer cleanup()

	for i := 0; i < cap(ch)+5; i++ {
		hub.Publish("kiosk:X", "tick", i)
	}
	assert.Len(t, ch, cap(ch))
}
