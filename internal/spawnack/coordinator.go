// Package spawnack correlates spawn requests with the asynchronous ready or
// error signal from the newly started session.
package spawnack

import (
	"context"
	"sync"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
)

// Status is the terminal state of a spawn wait.
type Status int

const (
	StatusReady Status = iota + 1
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Outcome is the settled result of a wait.
type Outcome struct {
	Status  Status
	Message string
}

// Pending is a wait that settles exactly once.
type Pending struct {
	sessionID string
	done      chan struct{}
	once      sync.Once
	outcome   Outcome
	timer     *time.Timer
}

func (p *Pending) settle(o Outcome) bool {
	settled := false
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
		settled = true
	})
	return settled
}

// SessionID returns the session id the wait is registered for.
func (p *Pending) SessionID() string { return p.sessionID }

// Done is closed when the wait settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Outcome returns the settled outcome. It is only meaningful after Done is
// closed.
func (p *Pending) Outcome() Outcome {
	<-p.done
	return p.outcome
}

// Wait blocks until the wait settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Coordinator holds the process-local table of pending spawns.
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{pending: make(map[string]*Pending)}
}

// WaitForSpawnAck registers a wait for sessionID. A prior wait for the same
// id is silently dropped from the table: acks no longer reach it and it ends
// on its own deadline.
func (c *Coordinator) WaitForSpawnAck(sessionID string, timeout time.Duration) *Pending {
	p := &Pending{sessionID: sessionID, done: make(chan struct{})}

	c.mu.Lock()
	if _, ok := c.pending[sessionID]; ok {
		logger.Debugf("spawn wait for %s superseded", sessionID)
	}
	c.pending[sessionID] = p
	p.timer = time.AfterFunc(timeout, func() {
		c.take(sessionID, p)
		if p.settle(Outcome{Status: StatusTimedOut, Message: "timed out waiting for session to start"}) {
			logger.Warnf("spawn wait for %s timed out after %s", sessionID, timeout)
		}
	})
	c.mu.Unlock()
	return p
}

// take removes p from the table if it is still the registered waiter.
func (c *Coordinator) take(sessionID string, p *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[sessionID] == p {
		delete(c.pending, sessionID)
	}
}

func (c *Coordinator) resolve(sessionID string, o Outcome) bool {
	c.mu.Lock()
	p, ok := c.pending[sessionID]
	if ok {
		delete(c.pending, sessionID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.timer.Stop()
	return p.settle(o)
}

// ResolveSpawnReady settles the pending wait for sessionID as ready. It
// reports whether a wait was pending.
func (c *Coordinator) ResolveSpawnReady(sessionID string) bool {
	return c.resolve(sessionID, Outcome{Status: StatusReady})
}

// ResolveSpawnError settles the pending wait for sessionID as failed.
func (c *Coordinator) ResolveSpawnError(sessionID, message string) bool {
	return c.resolve(sessionID, Outcome{Status: StatusFailed, Message: message})
}

// Len returns the number of pending waits.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close settles every pending wait as timed out. Used on shutdown.
func (c *Coordinator) Close() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*Pending)
	c.mu.Unlock()
	for _, p := range pending {
		p.timer.Stop()
		p.settle(Outcome{Status: StatusTimedOut, Message: "server shutting down"})
	}
}
