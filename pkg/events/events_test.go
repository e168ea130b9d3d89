package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")

	bus.Publish(TypeRunStarted, map[string]string{"plan": "p1"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			assert.Equal(t, TypeRunStarted, ev.Type, "subscriber %s", name)
			assert.NotEmpty(t, ev.ID)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive the event", name)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe("a")
	bus.Unsubscribe("a")

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Publish(TypeRunCompleted, nil)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("slow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(TypeModelCall, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
