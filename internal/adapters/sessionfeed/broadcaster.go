// Package sessionfeed fans session-change notifications out to subscribers.
package sessionfeed

import (
	"slices"
	"sync"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

// Broadcaster is a listener registry shared by identity-provider adapters.
// The zero value is ready to use.
type Broadcaster struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]ports.SessionListener
}

// Subscribe registers listener. The returned func is idempotent.
func (b *Broadcaster) Subscribe(listener ports.SessionListener) func() {
	if listener == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]ports.SessionListener)
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers change to every listener in subscription order.
// Listeners run on the caller's goroutine without the registry lock held.
func (b *Broadcaster) Emit(change domainauth.SessionChange) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	targets := make([]ports.SessionListener, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, b.listeners[id])
	}
	b.mu.Unlock()

	for _, l := range targets {
		l(change)
	}
}

// Len returns the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
