package transport

import (
	"errors"
	"sync"
)

// ErrAborted is returned by Gate.Enter once shutdown has begun. A caller
// seeing it must not start the operation it was about to track.
var ErrAborted = errors.New("transport is shutting down")

// Gate tracks detached outbound sends so that shutdown can first refuse new
// work and then wait for everything already in flight to drain. Every
// successful Enter must be paired with exactly one Leave on every exit path,
// or Close will wait forever for phantom work.
//
// Gate is safe for concurrent use. Close is idempotent: a second call finds
// the gate already closed and returns once the original drain completes.
type Gate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	count  int
	closed bool
}

// NewGate returns an open gate.
func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Enter registers one tracked operation. It fails with ErrAborted if the
// gate is closing or closed.
func (g *Gate) Enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrAborted
	}
	g.count++
	return nil
}

// Leave deregisters one tracked operation.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count == 0 {
		panic("transport: Gate.Leave without matching Enter")
	}
	g.count--
	if g.count == 0 && g.closed {
		g.cond.Broadcast()
	}
}

// Close marks the gate closed, rejecting further Enter calls, and blocks
// until all previously entered operations have left.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for g.count > 0 {
		g.cond.Wait()
	}
}

// Pending returns the number of tracked operations currently in flight.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Closed reports whether Close has been called.
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}
