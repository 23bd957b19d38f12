package counter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEventBuffer    = 256
	defaultPublishTimeout = 5 * time.Second
)

type pendingEvent struct {
	ctx   context.Context
	event Event
}

// dispatcher hands events to the publisher from a single goroutine so a slow
// or stalled broker never holds up the caller that issued the number.
// Events are delivered in the order they were queued; when the buffer is
// full new events are dropped and logged.
type dispatcher struct {
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	events chan pendingEvent
	done   chan struct{}
}

func newDispatcher(publisher Publisher, logger *zap.Logger, buffer int, timeout time.Duration) *dispatcher {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	d := &dispatcher{
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
		events:    make(chan pendingEvent, buffer),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// enqueue never blocks. The caller's cancellation is detached so a request
// that ends right after issuing still gets its event out.
func (d *dispatcher) enqueue(ctx context.Context, event Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.events <- pendingEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return true
	default:
		return false
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for pending := range d.events {
		ctx, cancel := context.WithTimeout(pending.ctx, d.timeout)
		err := d.publisher.Publish(ctx, pending.event)
		cancel()
		if err != nil {
			d.logger.Warn("counter event publish failed",
				zap.String("type", string(pending.event.Type)),
				zap.String("branchId", pending.event.BranchID),
				zap.Error(err),
			)
		}
	}
}

// close stops accepting events and waits until the queued ones are sent or
// ctx ends.
func (d *dispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
