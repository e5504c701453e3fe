package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitFor_EventuallyMet(t *testing.T) {
	var attempts atomic.Int32
	require.NoError(t, WaitFor(time.Second, 5*time.Millisecond, func() bool {
		return attempts.Add(1) >= 3
	}))
	assert.EqualValues(t, 3, attempts.Load())
}

func TestWaitFor_NeverMet(t *testing.T) {
	start := time.Now()
	assert.Error(t, WaitFor(50*time.Millisecond, 10*time.Millisecond, func() bool {
		return false
	}))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitFor_InvalidInterval(t *testing.T) {
	assert.Error(t, WaitFor(10*time.Millisecond, 100*time.Millisecond, func() bool {
		return true
	}))
}
