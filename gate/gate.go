/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package gate provides a bounded admission gate for limiting the number of
// concurrently served requests. The gate never blocks and never queues:
// when all slots are busy, acquisition fails immediately so that the caller
// can shed the request instead of converting overload into added latency.
package gate

import (
	"fmt"

	"github.com/rs/xid"
	"go.uber.org/atomic"
)

// Gate limits the number of concurrent holders of its slots.
// Capacity is fixed at construction and never changes at runtime.
// All methods are safe for concurrent use.
type Gate struct {
	capacity int64
	inFlight atomic.Int64
}

// New creates a new Gate with the given capacity.
func New(capacity int) (*Gate, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity should be positive, got %d", capacity)
	}
	return &Gate{capacity: int64(capacity)}, nil
}

// MustNew is a version of New that panics on error.
func MustNew(capacity int) *Gate {
	g, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return g
}

// TryAcquire attempts to acquire one gate slot without blocking.
// The check and the increment are a single atomic operation, so two concurrent
// callers can never both take the last remaining slot.
// On failure it returns (nil, false) and has no side effect.
func (g *Gate) TryAcquire() (*Ticket, bool) {
	for {
		cur := g.inFlight.Load()
		if cur >= g.capacity {
			return nil, false
		}
		if g.inFlight.CompareAndSwap(cur, cur+1) {
			return &Ticket{id: xid.New(), gate: g}, true
		}
	}
}

// Capacity returns the gate capacity.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

func (g *Gate) release() {
	g.inFlight.Dec()
}

// Ticket is a single-use proof of ownership of one gate slot.
// It is issued by a successful TryAcquire and consumed by its Release call.
type Ticket struct {
	id       xid.ID
	gate     *Gate
	released atomic.Bool
}

// ID returns the unique identifier of the ticket. It may be used for log correlation.
func (t *Ticket) ID() string {
	return t.id.String()
}

// Release returns the slot to the gate. The ticket is consumed by the first
// call; subsequent calls do nothing, so a slot can never be released twice.
func (t *Ticket) Release() {
	if t == nil {
		return
	}
	if t.released.CompareAndSwap(false, true) {
		t.gate.release()
	}
}
