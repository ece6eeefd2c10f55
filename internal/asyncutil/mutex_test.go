package asyncutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockOnHeldMutexFails(t *testing.T) {
	m := New()
	require.True(t, m.TryLock())
	assert.False(t, m.TryLock())
	m.Unlock()
	assert.True(t, m.TryLock())
}

func TestUnlockWakesExactlyOneWaiter(t *testing.T) {
	m := New()
	require.True(t, m.TryLock())

	acquired := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := m.Lock(ctx); err == nil {
				acquired <- i
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	m.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("no waiter resumed")
	}

	select {
	case <-acquired:
		t.Fatal("more than one waiter resumed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLockCancellation(t *testing.T) {
	m := New()
	require.True(t, m.TryLock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Lock(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLockGuardReleaseIdempotent(t *testing.T) {
	m := New()
	g, err := m.LockGuard(context.Background())
	require.NoError(t, err)
	assert.False(t, m.TryLock())
	g.Release()
	g.Release()
	assert.True(t, m.TryLock())
}
