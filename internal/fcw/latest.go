package fcw

import "sync"

// Latest is a single-value mailbox for background collaborators. A
// producer publishes whenever it has a fresh result; the per-frame loop
// peeks without ever blocking on the producer. Peek returns the most
// recent value, or the zero value and false before the first publish.
type Latest[T any] struct {
	mu  sync.Mutex
	val T
	set bool
}

// Publish replaces the stored value.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	l.val = v
	l.set = true
	l.mu.Unlock()
}

// Peek returns the most recent value without waiting.
func (l *Latest[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.val, l.set
}
