package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/txstatus-server/pkg/testutil"
)

func TestLocalLock_HappyPath(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	l, err := lm.Create(ctx, "order/ORDER42")
	require.NoError(t, err)
	assert.False(t, l.IsLocked())

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, l.IsLocked())

	require.NoError(t, l.Unlock(ctx))
	<-lostCh
	assert.False(t, l.IsLocked())

	// Unlock is idempotent
	require.NoError(t, l.Unlock(ctx))
}

func TestLocalLock_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	first, err := lm.Create(ctx, "order/ORDER42")
	require.NoError(t, err)
	second, err := lm.Create(ctx, "order/ORDER42")
	require.NoError(t, err)

	_, err = first.Acquire(ctx)
	require.NoError(t, err)

	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = second.Acquire(timeoutCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, second.IsLocked())

	require.NoError(t, first.Unlock(ctx))

	_, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Unlock(ctx))
}

func TestLocalLock_DoubleAcquire(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	l, err := lm.Create(ctx, "order/ORDER42")
	require.NoError(t, err)

	_, err = l.Acquire(ctx)
	require.NoError(t, err)

	_, err = l.Acquire(ctx)
	assert.Error(t, err)

	require.NoError(t, l.Unlock(ctx))
}

func TestLocalLock_EmptyName(t *testing.T) {
	_, err := NewLockManager().Create(context.Background(), "")
	assert.Error(t, err)
}

func TestLocalLock_CanceledAcquireDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	holder, err := lm.Create(ctx, "order/ORDER42")
	require.NoError(t, err)
	_, err = holder.Acquire(ctx)
	require.NoError(t, err)

	waiter, err := lm.Create(ctx, "order/ORDER42")
	require.NoError(t, err)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = waiter.Acquire(canceledCtx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, holder.Unlock(ctx))

	// The abandoned acquisition eventually releases the underlying lock
	next, err := lm.Create(ctx, "order/ORDER42")
	require.NoError(t, err)
	require.NoError(t, testutil.WaitFor(time.Second, 10*time.Millisecond, func() bool {
		attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		if _, err := next.Acquire(attemptCtx); err != nil {
			return false
		}
		return next.Unlock(ctx) == nil
	}))
}
