// Package cancel implements the shared cancellation channel that a
// refactoring run, its capability calls, and any in-flight diff or streaming
// operation all observe.
//
// A Coordinator is a broadcast event channel plus a boolean latch. Signal is
// idempotent: the latch is set once and every registered listener is notified
// exactly once, no matter how many times Signal (or the host's cancellation
// token) fires. ForceCancel is the narrower channel a script uses to terminate
// its own run; the Coordinator escalates it into an ordinary cancel event.
package cancel

import "sync"

// Coordinator coordinates cancellation across one refactoring run.
// The zero value is not usable; use New.
type Coordinator struct {
	mu        sync.Mutex
	done      chan struct{}
	cancelled bool
	forced    bool
	nextID    int
	listeners map[int]func()
}

// New creates a Coordinator in the non-cancelled state.
func New() *Coordinator {
	return &Coordinator{
		done:      make(chan struct{}),
		listeners: make(map[int]func()),
	}
}

// Signal sets the latch and notifies all registered listeners.
// Safe to call from any goroutine, any number of times; only the first call
// has an observable effect.
func (c *Coordinator) Signal() {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listeners = make(map[int]func())
	close(c.done)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// ForceCancel requests cancellation of the entire run from inside the run
// itself (e.g. a script callback). It is escalated into an ordinary cancel.
func (c *Coordinator) ForceCancel() {
	c.mu.Lock()
	if !c.cancelled {
		c.forced = true
	}
	c.mu.Unlock()
	c.Signal()
}

// Forced reports whether cancellation originated from ForceCancel.
func (c *Coordinator) Forced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forced
}

// IsCancelled reports whether the latch has been set.
func (c *Coordinator) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Done returns a channel closed when cancellation fires. Useful in select
// statements racing a blocking operation against cancellation.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// ListenerCount reports the number of currently registered listeners.
func (c *Coordinator) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// OnCancel registers a listener invoked exactly once when cancellation fires.
// If the Coordinator is already cancelled the listener is invoked immediately.
// The returned function removes the listener; it is idempotent and a no-op
// after the listener has fired.
func (c *Coordinator) OnCancel(fn func()) (remove func()) {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		fn()
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}
