package observer_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mek-labs/kernel/pkg/observer"
)

func TestHub_Emit_DeliversToAllSubscribers(t *testing.T) {
	hub := observer.New(nil)

	var mu sync.Mutex
	var received []string
	done := make(chan struct{})

	sub := observer.ObserverFunc(func(e observer.Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
		close(done)
	})
	hub.Register(sub)

	hub.Emit(observer.Event{Type: "admission.succeeded"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the emitted event")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"admission.succeeded"}, received)
}

// TestHub_Emit_PanickingObserverDoesNotAffectOthers covers the P5-style
// guarantee: a careless subscriber's panic must never propagate out of
// Emit or prevent delivery to a sibling subscriber.
func TestHub_Emit_PanickingObserverDoesNotAffectOthers(t *testing.T) {
	hub := observer.New(nil)

	panicky := observer.ObserverFunc(func(e observer.Event) {
		panic("boom")
	})
	hub.Register(panicky)

	done := make(chan struct{})
	healthy := observer.ObserverFunc(func(e observer.Event) {
		close(done)
	})
	hub.Register(healthy)

	assert.NotPanics(t, func() {
		hub.Emit(observer.Event{Type: "test.event"})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber was never delivered the event despite a sibling panicking")
	}
}

// TestHub_Unregister_StopsDelivery confirms a subscriber stops receiving
// events once unregistered.
func TestHub_Unregister_StopsDelivery(t *testing.T) {
	hub := observer.New(nil)

	var mu sync.Mutex
	count := 0
	sub := hub.Register(observer.ObserverFunc(func(e observer.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	}))

	hub.Emit(observer.Event{Type: "before.unregister"})
	time.Sleep(50 * time.Millisecond)

	hub.Unregister(sub)
	hub.Emit(observer.Event{Type: "after.unregister"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "no event should be delivered after Unregister")
}

// TestHub_Emit_NeverBlocksOnFullSubscriberChannel is P5's core claim:
// a subscriber that never drains its channel must not stall Emit.
func TestHub_Emit_NeverBlocksOnFullSubscriberChannel(t *testing.T) {
	hub := observer.New(nil)
	block := make(chan struct{})
	hub.Register(observer.ObserverFunc(func(e observer.Event) {
		<-block
	}))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Emit(observer.Event{Type: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a saturated subscriber channel")
	}
	close(block)
}
