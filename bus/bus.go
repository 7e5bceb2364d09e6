// Package bus implements the bounded, multi-producer single-consumer event
// queue that sits between probes and the state graph.
package bus

import (
	"sync"

	"github.com/gridwatch/gridwatch/event"
)

// DefaultCapacity is the bus depth used when none is configured.
const DefaultCapacity = 1000

// Bus is a bounded queue of events. Producers that find the queue full
// block until a slot frees (cooperative back-pressure); the consumer
// observes FIFO order per producer via a single shared channel. A plain Go
// channel already is the idiomatic bounded-queue-with-backpressure
// primitive here — no third-party dependency reaches further than that.
type Bus struct {
	ch chan event.Event

	mu        sync.Mutex
	producers int
	closed    bool
}

// New creates a Bus with the given capacity. A capacity of 0 or less falls
// back to DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{ch: make(chan event.Event, capacity)}
}

// NewProducer registers a new producer and returns a handle used to push
// events and, eventually, release the registration. Closing the last
// registered producer closes the underlying channel, terminating the
// consumer's range loop.
func (b *Bus) NewProducer() *Producer {
	b.mu.Lock()
	b.producers++
	b.mu.Unlock()

	return &Producer{bus: b}
}

// Events returns the channel consumers should range over.
func (b *Bus) Events() <-chan event.Event {
	return b.ch
}

// Producer is a single producer's handle onto the bus. It must be closed
// exactly once when the producer is done emitting events.
type Producer struct {
	bus      *Bus
	once     sync.Once
	released bool
}

// Push enqueues an event, blocking if the bus is at capacity. Calling it
// after Close is a programming error in the caller, not a runtime
// condition to recover from: once the last registered producer has
// closed, the channel is closed and Push panics.
func (p *Producer) Push(ev event.Event) {
	p.bus.ch <- ev
}

// Close releases this producer's registration. When the last registered
// producer closes, the bus's channel is closed.
func (p *Producer) Close() {
	p.once.Do(func() {
		p.bus.mu.Lock()
		defer p.bus.mu.Unlock()

		p.bus.producers--
		if p.bus.producers <= 0 && !p.bus.closed {
			p.bus.closed = true
			close(p.bus.ch)
		}
	})
}
