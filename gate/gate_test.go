/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestNew(t *testing.T) {
	t.Run("positive capacity", func(t *testing.T) {
		g, err := New(10)
		require.NoError(t, err)
		require.Equal(t, 10, g.Capacity())
		require.Equal(t, 0, g.InFlight())
	})

	t.Run("zero capacity", func(t *testing.T) {
		_, err := New(0)
		require.EqualError(t, err, "capacity should be positive, got 0")
	})

	t.Run("negative capacity", func(t *testing.T) {
		_, err := New(-5)
		require.EqualError(t, err, "capacity should be positive, got -5")
	})
}

func TestMustNewPanics(t *testing.T) {
	require.Panics(t, func() { MustNew(0) })
	require.NotPanics(t, func() { MustNew(1) })
}

func TestGateTryAcquireExactness(t *testing.T) {
	const capacity = 3

	g := MustNew(capacity)
	tickets := make([]*Ticket, 0, capacity)
	for i := 0; i < capacity; i++ {
		ticket, ok := g.TryAcquire()
		require.True(t, ok)
		require.NotNil(t, ticket)
		tickets = append(tickets, ticket)
	}
	require.Equal(t, capacity, g.InFlight())

	// The gate is full, the next attempt should fail with no side effect.
	ticket, ok := g.TryAcquire()
	require.False(t, ok)
	require.Nil(t, ticket)
	require.Equal(t, capacity, g.InFlight())

	// Releasing one slot makes the very next attempt succeed.
	tickets[0].Release()
	require.Equal(t, capacity-1, g.InFlight())
	ticket, ok = g.TryAcquire()
	require.True(t, ok)
	ticket.Release()

	for _, tk := range tickets[1:] {
		tk.Release()
	}
	require.Equal(t, 0, g.InFlight())
}

func TestTicketReleaseIsSingleUse(t *testing.T) {
	g := MustNew(1)
	ticket, ok := g.TryAcquire()
	require.True(t, ok)
	require.Equal(t, 1, g.InFlight())

	ticket.Release()
	require.Equal(t, 0, g.InFlight())

	// A repeated release must not decrement the counter below zero.
	ticket.Release()
	require.Equal(t, 0, g.InFlight())
}

func TestTicketIDsAreUnique(t *testing.T) {
	g := MustNew(2)
	t1, ok := g.TryAcquire()
	require.True(t, ok)
	t2, ok := g.TryAcquire()
	require.True(t, ok)
	require.NotEqual(t, t1.ID(), t2.ID())
	t1.Release()
	t2.Release()
}

func TestGateConcurrentInvariant(t *testing.T) {
	const capacity = 8
	const goroutines = 64
	const iterations = 200

	g := MustNew(capacity)
	var acquired, rejected atomic.Int64
	var maxObserved atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				ticket, ok := g.TryAcquire()
				if !ok {
					rejected.Inc()
					continue
				}
				acquired.Inc()

				inFlight := int64(g.InFlight())
				for {
					prevMax := maxObserved.Load()
					if inFlight <= prevMax || maxObserved.CompareAndSwap(prevMax, inFlight) {
						break
					}
				}

				ticket.Release()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 0, g.InFlight(), "every acquired slot should be released")
	require.LessOrEqual(t, maxObserved.Load(), int64(capacity), "in-flight count should never exceed capacity")
	require.Equal(t, int64(goroutines*iterations), acquired.Load()+rejected.Load())
	require.Greater(t, acquired.Load(), int64(0))
}

func TestGateConcurrentLastSlot(t *testing.T) {
	// Many goroutines race for a single slot; exactly one must win each round.
	const goroutines = 32
	const rounds = 100

	g := MustNew(1)
	for round := 0; round < rounds; round++ {
		var winners atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})
		tickets := make(chan *Ticket, goroutines)
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if ticket, ok := g.TryAcquire(); ok {
					winners.Inc()
					tickets <- ticket
				}
			}()
		}
		close(start)
		wg.Wait()
		require.Equal(t, int64(1), winners.Load())
		close(tickets)
		for ticket := range tickets {
			ticket.Release()
		}
		require.Equal(t, 0, g.InFlight())
	}
}
