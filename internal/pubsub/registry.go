// Package pubsub provides a small typed subscriber table. Subscribing returns
// a Token; the token, not the callback, is the handle for unsubscribing.
package pubsub

import "sync"

// Token identifies one subscription. The zero Token is never issued.
type Token uint64

// Registry delivers values of type T to subscribers in subscription order.
// Publish is synchronous: every handler has returned when Publish returns.
type Registry[T any] struct {
	mu       sync.RWMutex
	next     Token
	handlers []entry[T]
}

type entry[T any] struct {
	token Token
	fn    func(T)
}

// Subscribe registers fn and returns its token.
func (r *Registry[T]) Subscribe(fn func(T)) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.handlers = append(r.handlers, entry[T]{token: r.next, fn: fn})
	return r.next
}

// Unsubscribe removes the subscription. It reports false if the token was
// unknown, which makes repeated calls harmless.
func (r *Registry[T]) Unsubscribe(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, h := range r.handlers {
		if h.token == token {
			r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Publish calls every handler with v. Handlers may unsubscribe themselves,
// or others, while being called.
func (r *Registry[T]) Publish(v T) {
	r.mu.RLock()
	n := len(r.handlers)
	if n == 0 {
		r.mu.RUnlock()
		return
	}
	var buf [8]entry[T]
	snapshot := append(buf[:0], r.handlers...)
	r.mu.RUnlock()

	for _, h := range snapshot {
		if r.active(h.token) {
			h.fn(v)
		}
	}
}

func (r *Registry[T]) active(token Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if h.token == token {
			return true
		}
	}
	return false
}

// Len returns the number of live subscriptions.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear drops every subscription.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = nil
}
