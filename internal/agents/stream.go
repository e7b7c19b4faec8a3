package agents

import (
	"strings"
	"sync"
)

// Sink receives progress events while a turn executes.
type Sink interface {
	Emit(event Event)
}

// DiscardSink drops all events. Used for synchronous turns.
type DiscardSink struct{}

func (DiscardSink) Emit(Event) {}

// Assembler relays turn events over a bounded channel and reassembles the
// response content from the deltas it sees.
type Assembler struct {
	events chan Event

	mu      sync.Mutex
	content strings.Builder
	closed  bool
}

// NewAssembler creates an assembler with the specified channel capacity.
func NewAssembler(buffer int) *Assembler {
	if buffer < 1 {
		buffer = 1
	}
	return &Assembler{
		events: make(chan Event, buffer),
	}
}

// Emit forwards an event to the consumer, blocking when the channel is full.
// Content deltas are accumulated for Content. The mutex is held across the
// send so a concurrent Close can never close the channel under it; Close
// waits for any in-flight send to hand off first.
func (a *Assembler) Emit(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	if event.Type == EventContentDelta {
		a.content.WriteString(event.Content)
	}
	a.events <- event
}

// Events returns the channel the consumer drains. The channel closes after
// Close is called.
func (a *Assembler) Events() <-chan Event {
	return a.events
}

// Content returns the response assembled from deltas so far.
func (a *Assembler) Content() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.content.String()
}

// Close marks the stream finished and closes the event channel.
func (a *Assembler) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.events)
}
