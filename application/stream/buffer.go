package stream

import (
	"sync"

	"go.uber.org/zap"

	"starmap/domain/events"
)

// Buffer serializes, orders and gates delivery of inbound push events.
// While the host view is hidden, events queue instead of applying; on
// resume the queue flushes in original receipt order and a full
// resynchronization is requested, so a long buffer is never trusted to
// bound staleness. The buffer holds no domain knowledge beyond
// forwarding.
type Buffer struct {
	mu        sync.Mutex
	suspended bool
	queue     []events.Event
	sink      func(events.Event)
	resync    func()
	logger    *zap.Logger
}

// NewBuffer creates a buffer delivering to sink. resync is invoked after
// every resume flush.
func NewBuffer(sink func(events.Event), resync func(), logger *zap.Logger) *Buffer {
	return &Buffer{
		sink:   sink,
		resync: resync,
		logger: logger,
	}
}

// Publish delivers an event downstream, or queues it while suspended.
// Events are never dropped or reordered.
func (b *Buffer) Publish(evt events.Event) {
	b.mu.Lock()
	if b.suspended {
		b.queue = append(b.queue, evt)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	b.sink(evt)
}

// Suspend gates delivery while the view is not visible
func (b *Buffer) Suspend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suspended = true
}

// Resume flushes the queue in receipt order, then requests a full
// resynchronization
func (b *Buffer) Resume() {
	b.mu.Lock()
	if !b.suspended {
		b.mu.Unlock()
		return
	}
	b.suspended = false
	queued := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, evt := range queued {
		b.sink(evt)
	}

	b.logger.Debug("event buffer resumed",
		zap.Int("flushed", len(queued)),
	)
	b.resync()
}

// Suspended reports whether delivery is currently gated
func (b *Buffer) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended
}

// Queued reports the number of buffered events
func (b *Buffer) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
