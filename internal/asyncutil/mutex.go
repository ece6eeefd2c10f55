// Package asyncutil provides the single-slot cooperative mutex described in
// spec.md §4.1. It is the only exclusion primitive the websocket frame
// layer (C8) uses to serialize concurrent writers on one connection.
package asyncutil

import "context"

// Mutex is a binary lock for goroutines that voluntarily cooperate through
// Lock/Unlock rather than blocking the OS thread. Unlike sync.Mutex it
// supports cancellation via context and exposes TryLock without requiring
// Go 1.18+'s runtime-level TryLock (present for parity with the spec's
// "not thread-safe, single scheduler" framing — Mutex here is safe for
// concurrent goroutines, since Go has no single-threaded event loop, but
// it makes no fairness guarantee between waiters, exactly as spec.md §4.1
// requires).
type Mutex struct {
	slot chan struct{}
}

// New returns an unlocked Mutex.
func New() *Mutex {
	m := &Mutex{slot: make(chan struct{}, 1)}
	m.slot <- struct{}{}
	return m
}

// Lock suspends the caller until the lock is free, then acquires it.
// It fails only if ctx is cancelled first.
func (m *Mutex) Lock(ctx context.Context) error {
	select {
	case <-m.slot:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock acquires the lock without suspending, reporting whether it
// succeeded.
func (m *Mutex) TryLock() bool {
	select {
	case <-m.slot:
		return true
	default:
		return false
	}
}

// Unlock releases the lock, waking at most one waiter. Unlocking an
// already-unlocked Mutex is a programmer error and panics, matching the
// discipline spec.md §4.1 assumes of its single-scheduler callers.
func (m *Mutex) Unlock() {
	select {
	case m.slot <- struct{}{}:
	default:
		panic("asyncutil: Unlock of unlocked Mutex")
	}
}

// Guard is a scoped handle returned by LockGuard; calling Release is
// equivalent to Unlock and is idempotent.
type Guard struct {
	m        *Mutex
	released bool
}

// Release unlocks the underlying Mutex. Safe to call more than once.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.m.Unlock()
}

// LockGuard acquires the lock and returns a Guard that releases it,
// matching spec.md §4.1's lock_with_guard.
func (m *Mutex) LockGuard(ctx context.Context) (*Guard, error) {
	if err := m.Lock(ctx); err != nil {
		return nil, err
	}
	return &Guard{m: m}, nil
}
