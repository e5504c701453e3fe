package rate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	l := &NoLimiter{}
	for i := 0; i < 1000; i++ {
		allowed, err := l.Allow("185.60.20.1")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLocalRateLimiter(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(2))

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("185.60.20.1")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := l.Allow("185.60.20.1")
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Keys are limited independently
	allowed, err = l.Allow("213.178.72.196")
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestLocalRateLimiter_FractionalRate(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(0.5))

	allowed, err := l.Allow("185.60.20.1")
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow("185.60.20.1")
	assert.NoError(t, err)
	assert.False(t, allowed)
}
