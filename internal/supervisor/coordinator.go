// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/gamekeeper/gamekeeper/internal/platform"
)

// Coordinator carries the shutdown request from signal handlers to the
// supervision loop. The flag is the only state shared between them.
type Coordinator struct {
	requested atomic.Bool
	done      chan struct{}
	once      sync.Once

	mu     sync.Mutex
	reason string
}

// NewCoordinator creates a Coordinator with no shutdown requested.
func NewCoordinator() *Coordinator {
	return &Coordinator{done: make(chan struct{})}
}

// Request marks shutdown as requested. Only the first call's reason is kept.
func (c *Coordinator) Request(reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		c.requested.Store(true)
		close(c.done)
	})
}

// Requested reports whether shutdown was requested.
func (c *Coordinator) Requested() bool {
	return c.requested.Load()
}

// Done is closed when shutdown is requested.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Reason returns the first request's reason, or "" before any request.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Listen turns the platform termination signals and ctx cancellation into a
// shutdown request. The returned function stops listening.
func (c *Coordinator) Listen(ctx context.Context) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, platform.TerminationSignals()...)

	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			c.Request("received " + sig.String())
		case <-quit:
		}
	}()
	stopCtx := context.AfterFunc(ctx, func() { c.Request("context canceled") })

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			stopCtx()
			close(quit)
		})
	}
}
