// Package eventbus implements the bounded, allocation-free-on-the-hot-path
// channel the render loop uses to publish lifecycle events to control-thread
// pollers. In practice it is single-producer (render)/single-consumer (the
// World facade's PollEvents), but the underlying Go channel is safe for any
// number of concurrent senders and receivers.
package eventbus

import "sync/atomic"

// Bus is a bounded event queue of T with overflow-drop semantics: once
// full, Send drops the new event and increments a counter rather than
// blocking the render thread.
type Bus[T any] struct {
	ch      chan T
	dropped atomic.Uint64
	hadDrop atomic.Bool
}

// New returns a Bus with room for capacity pending events.
func New[T any](capacity int) *Bus[T] {
	return &Bus[T]{ch: make(chan T, capacity)}
}

// Send enqueues ev without blocking. It returns false if the bus was full
// and ev was dropped, in which case the caller should increment whatever
// overflow accounting it needs; Bus itself tracks the drop count and a
// rising-edge flag consumable via ConsumeOverflowEdge.
func (b *Bus[T]) Send(ev T) bool {
	select {
	case b.ch <- ev:
		return true
	default:
		b.dropped.Add(1)
		b.hadDrop.Store(true)
		return false
	}
}

// Dropped returns the total number of events dropped over the Bus's
// lifetime.
func (b *Bus[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// ConsumeOverflowEdge reports whether at least one drop occurred since the
// last call, clearing the flag. This gives rising-edge semantics: it fires
// once per overflow episode, not once per dropped event.
func (b *Bus[T]) ConsumeOverflowEdge() bool {
	return b.hadDrop.CompareAndSwap(true, false)
}

// Poll drains every currently queued event without blocking.
func (b *Bus[T]) Poll() []T {
	var out []T
	for {
		select {
		case ev := <-b.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
