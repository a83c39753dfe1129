package feed

import (
	"log"
	"sync"

	"signals-systemv1/internal/protocol"
)

// Fanout broadcasts decoded protocol events from the connection's read
// loop to N subscriber channels. A full subscriber channel drops the
// event for that subscriber so a slow consumer never blocks the socket.
type Fanout struct {
	mu      sync.RWMutex
	outputs []chan protocol.Event
	bufSize int

	// OnDrop is called when an event is dropped for a subscriber.
	OnDrop func(subscriberIdx int)
}

// NewFanout creates a Fanout with the given per-subscriber buffer size.
func NewFanout(bufSize int) *Fanout {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Fanout{bufSize: bufSize}
}

// Subscribe creates and returns a new subscriber channel.
func (f *Fanout) Subscribe() <-chan protocol.Event {
	ch := make(chan protocol.Event, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber, dropping for full channels.
func (f *Fanout) Publish(ev protocol.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, ch := range f.outputs {
		select {
		case ch <- ev:
		default:
			if f.OnDrop != nil {
				f.OnDrop(i)
			} else {
				log.Printf("[feed] subscriber %d channel full, dropping event %q", i, ev.Name)
			}
		}
	}
}

// Close closes all subscriber channels.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.outputs {
		close(ch)
	}
	f.outputs = nil
}
