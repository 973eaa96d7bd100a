// Package bus decouples the Telegram gateway from the moderation loop
// with buffered channels, so a slow classifier call never blocks update
// polling.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed MessageBus.
var ErrBusClosed = errors.New("message bus closed")

type MessageBus struct {
	events  chan Event
	notices chan Notice
	done    chan struct{}
	closed  atomic.Bool
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		events:  make(chan Event, 100),
		notices: make(chan Notice, 100),
		done:    make(chan struct{}),
	}
}

func (mb *MessageBus) Publish(ctx context.Context, ev Event) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case mb.events <- ev:
		return nil
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *MessageBus) Consume(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-mb.events:
		return ev, ok
	case <-mb.done:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

func (mb *MessageBus) Notify(ctx context.Context, n Notice) error {
	if mb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case mb.notices <- n:
		return nil
	case <-mb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *MessageBus) Notices(ctx context.Context) (Notice, bool) {
	select {
	case n, ok := <-mb.notices:
		return n, ok
	case <-mb.done:
		return Notice{}, false
	case <-ctx.Done():
		return Notice{}, false
	}
}

func (mb *MessageBus) Close() {
	if mb.closed.CompareAndSwap(false, true) {
		close(mb.done)
	}
}
