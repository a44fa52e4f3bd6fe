package transport

import "sync/atomic"

// Canceller is a cooperative cancel flag shared between the goroutine that
// writes a request body and whoever wants to stop it. Writers check it at
// chunk and part boundaries; a chunk already being written is not interrupted.
type Canceller struct {
	cancelled atomic.Bool
}

// Cancel requests that the associated write stops at its next checkpoint.
func (c *Canceller) Cancel() {
	if c == nil {
		return
	}
	c.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (c *Canceller) Cancelled() bool {
	return c != nil && c.cancelled.Load()
}

// Reset clears the flag so the Canceller can be reused for another request.
func (c *Canceller) Reset() {
	if c == nil {
		return
	}
	c.cancelled.Store(false)
}
