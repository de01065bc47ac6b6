// Package event provides a small synchronous observer hub. Handlers run
// inline on the publishing goroutine in registration order, which keeps
// the single-threaded event model of the test controller intact.
package event

import "sync"

// Hub fans a typed event out to registered handlers. Publish invokes
// each handler synchronously; handlers must not block.
type Hub[T any] struct {
	mu       sync.Mutex
	nextID   int
	handlers []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewHub returns an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{}
}

// Subscribe registers fn and returns an id for Unsubscribe.
func (h *Hub[T]) Subscribe(fn func(T)) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.handlers = append(h.handlers, subscriber[T]{id: h.nextID, fn: fn})
	return h.nextID
}

// Unsubscribe removes the handler registered under id. Unknown ids are
// ignored.
func (h *Hub[T]) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.handlers {
		if s.id == id {
			h.handlers = append(h.handlers[:i], h.handlers[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every handler in registration order.
func (h *Hub[T]) Publish(ev T) {
	h.mu.Lock()
	fns := make([]func(T), len(h.handlers))
	for i, s := range h.handlers {
		fns[i] = s.fn
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Len reports the number of registered handlers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}
