// Package eventbus fans control events out from input sources to their
// consumers, preserving arrival order.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/stripd/internal/control"
)

// DefaultQueueSize is the dispatch queue length.
const DefaultQueueSize = 100

// Handler is a function that handles events
type Handler func(control.Event)

// Bus delivers published events to subscribers on a single dispatcher
// goroutine, so every handler sees events in publish order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler

	queue chan control.Event
	done  chan struct{}

	// closing is closed first to stop publishers; queue is closed under mu
	// so no Publish can be sending at that moment.
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithQueueSize(DefaultQueueSize)
}

// NewWithQueueSize creates a new event bus with a custom queue size
func NewWithQueueSize(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b := &Bus{
		queue:    make(chan control.Event, queueSize),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}

	go b.dispatch()

	log.Debug().Int("queue_size", queueSize).Msg("Event bus dispatcher started")
	return b
}

func (b *Bus) dispatch() {
	defer close(b.done)

	for ev := range b.queue {
		b.mu.RLock()
		handlers := b.handlers
		b.mu.RUnlock()

		for _, h := range handlers {
			b.call(h, ev)
		}
	}
}

func (b *Bus) call(h Handler, ev control.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("event_id", ev.ID).
				Str("kind", string(ev.Kind)).
				Msg("Event handler panicked")
		}
	}()
	h(ev)
}

// SubscribeAll registers a handler for every event. Handlers run in
// registration order.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers[:len(b.handlers):len(b.handlers)], handler)
}

// Publish queues an event for delivery.
// Non-blocking: if the queue is full or the bus is closing, the event is
// dropped and false is returned.
func (b *Bus) Publish(ev control.Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.closing:
		log.Warn().Str("kind", string(ev.Kind)).Msg("Event bus closing, dropping event")
		return false
	default:
	}

	select {
	case b.queue <- ev:
		return true
	default:
		log.Warn().
			Str("event_id", ev.ID).
			Str("kind", string(ev.Kind)).
			Msg("Event bus queue full, dropping event")
		return false
	}
}

// Close stops accepting events, delivers what is queued and waits for the
// dispatcher until ctx expires.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)

		b.mu.Lock()
		close(b.queue)
		b.mu.Unlock()
	})

	select {
	case <-b.done:
		log.Debug().Msg("Event bus dispatcher stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}

