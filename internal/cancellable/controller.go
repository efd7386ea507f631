package cancellable

import (
	"context"
	"sync"
)

// Controller coordinates cancellation of a single task.
type Controller struct {
	mu        sync.Mutex
	cancelled bool
	ended     bool

	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a controller for a task that has not started yet.
func New() *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// IsCancelled reports whether Cancel has been requested.
func (c *Controller) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Ended reports whether the task signalled completion.
func (c *Controller) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// Cancel requests cancellation and blocks until the task calls End. It returns
// immediately when the task already ended or another caller already cancelled.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.ended || c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	c.mu.Unlock()

	c.cancel()
	<-c.done
}

// End marks the task finished and releases a pending Cancel. Safe to call more
// than once.
func (c *Controller) End() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.mu.Unlock()

	c.cancel()
	close(c.done)
}

// Done is closed once End has been called.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Context returns a context cancelled by Cancel or End, for task code that
// blocks on I/O that accepts a context.
func (c *Controller) Context() context.Context {
	return c.ctx
}
