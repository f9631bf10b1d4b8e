// Package events is a small synchronous in-process event bus.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

// Handler receives one event. Handlers run on the publisher's goroutine.
type Handler[E any] func(ctx context.Context, ev E)

type subscriber[E any] struct {
	name string
	fn   Handler[E]
}

// Bus delivers events of type E to every subscriber in subscription order.
// A panicking subscriber is recovered and logged, the rest still run.
type Bus[E any] struct {
	mu     sync.RWMutex
	subs   []subscriber[E]
	logger log.Logger
	topic  string

	onPanic func(topic string)
}

func New[E any](topic string, logger log.Logger) *Bus[E] {
	if logger == nil {
		logger = log.Nop()
	}
	return &Bus[E]{topic: topic, logger: logger}
}

// Subscribe registers fn under name, used only in logs.
func (b *Bus[E]) Subscribe(name string, fn Handler[E]) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.subs = append(b.subs, subscriber[E]{name: name, fn: fn})
	b.mu.Unlock()
}

// OnPanic sets a hook run after a subscriber panic has been logged.
func (b *Bus[E]) OnPanic(fn func(topic string)) {
	b.mu.Lock()
	b.onPanic = fn
	b.mu.Unlock()
}

func (b *Bus[E]) Publish(ctx context.Context, ev E) {
	b.mu.RLock()
	subs, onPanic := b.subs, b.onPanic
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, ev, onPanic)
	}
}

func (b *Bus[E]) deliver(ctx context.Context, s subscriber[E], ev E, onPanic func(string)) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error(ctx, xerrors.Newf("subscriber panic: %v", rec), "event subscriber panicked",
				"topic", b.topic,
				"subscriber", s.name,
				"event_type", fmt.Sprintf("%T", ev),
			)
			if onPanic != nil {
				onPanic(b.topic)
			}
		}
	}()
	s.fn(ctx, ev)
}

func (b *Bus[E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
