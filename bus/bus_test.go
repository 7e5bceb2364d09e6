package bus

import (
	"testing"
	"time"

	"github.com/gridwatch/gridwatch/event"
)

func TestPushAndConsume(t *testing.T) {
	b := New(10)
	p := b.NewProducer()

	p.Push(event.Event{Kind: event.ComputeUtil, EntityID: "gpu-0", Value: "50"})
	p.Close()

	var got []event.Event
	for ev := range b.Events() {
		got = append(got, ev)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].EntityID != "gpu-0" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestClosesOnlyAfterLastProducer(t *testing.T) {
	b := New(10)
	p1 := b.NewProducer()
	p2 := b.NewProducer()

	p1.Push(event.Event{EntityID: "a"})
	p1.Close()

	select {
	case _, ok := <-b.Events():
		if !ok {
			t.Fatal("bus closed after only one of two producers released")
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected the already-pushed event to be immediately available")
	}

	p2.Push(event.Event{EntityID: "b"})
	p2.Close()

	count := 0
	for range b.Events() {
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 remaining event after first drained, got %d", count)
	}
}

func TestProducerCloseIsIdempotent(t *testing.T) {
	b := New(1)
	p := b.NewProducer()

	p.Close()
	p.Close() // must not panic or double-close the channel

	if _, ok := <-b.Events(); ok {
		t.Fatal("expected closed channel with no events")
	}
}

func TestBlocksAtCapacity(t *testing.T) {
	b := New(1)
	p := b.NewProducer()

	p.Push(event.Event{EntityID: "first"})

	done := make(chan struct{})
	go func() {
		p.Push(event.Event{EntityID: "second"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second push should have blocked while bus is at capacity")
	case <-time.After(20 * time.Millisecond):
		// expected: still blocked
	}

	<-b.Events() // drain one slot

	select {
	case <-done:
		// expected: unblocked after drain
	case <-time.After(time.Second):
		t.Fatal("push did not unblock after a slot freed")
	}

	p.Close()
}

func TestDefaultCapacity(t *testing.T) {
	b := New(0)
	if cap(b.ch) != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, cap(b.ch))
	}
}
