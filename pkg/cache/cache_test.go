package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertRetrieve(t *testing.T) {
	c := NewCache[string]("test", 10)

	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("B", "valueB", 2))

	value, ok := c.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, "valueA", value)

	_, ok = c.Retrieve("missing")
	assert.False(t, ok)

	assert.Equal(t, 3, c.GetWeight())
	assert.Equal(t, 10, c.GetBudget())
}

func TestCache_Replace(t *testing.T) {
	c := NewCache[string]("test", 10)

	require.NoError(t, c.Insert("A", "first", 2))
	require.NoError(t, c.Insert("A", "second", 3))

	value, ok := c.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, "second", value)
	assert.Equal(t, 3, c.GetWeight())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[int]("test", 3)

	require.NoError(t, c.Insert("A", 1, 1))
	require.NoError(t, c.Insert("B", 2, 1))
	require.NoError(t, c.Insert("C", 3, 1))

	// A becomes the most recently used, leaving B as the eviction candidate
	_, ok := c.Retrieve("A")
	require.True(t, ok)

	require.NoError(t, c.Insert("D", 4, 1))

	_, ok = c.Retrieve("B")
	assert.False(t, ok)
	for _, key := range []string{"A", "C", "D"} {
		_, ok = c.Retrieve(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, 3, c.GetWeight())

	// A heavy item evicts as many items as needed
	require.NoError(t, c.Insert("E", 5, 3))
	assert.Equal(t, 3, c.GetWeight())
	for _, key := range []string{"A", "C", "D"} {
		_, ok = c.Retrieve(key)
		assert.False(t, ok, key)
	}
}

func TestCache_InvalidWeight(t *testing.T) {
	c := NewCache[string]("test", 2)

	assert.Equal(t, ErrInvalidWeight, c.Insert("A", "value", 0))
	assert.Equal(t, ErrInvalidWeight, c.Insert("A", "value", 3))
	assert.Zero(t, c.GetWeight())
}

func TestCache_Clear(t *testing.T) {
	c := NewCache[string]("test", 10)

	require.NoError(t, c.Insert("A", "valueA", 1))
	c.Clear()

	_, ok := c.Retrieve("A")
	assert.False(t, ok)
	assert.Zero(t, c.GetWeight())

	require.NoError(t, c.Insert("B", "valueB", 1))
	_, ok = c.Retrieve("B")
	assert.True(t, ok)
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache[int]("test", 50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("%d-%d", worker, j%20)
				assert.NoError(t, c.Insert(key, j, 1))
				c.Retrieve(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.GetWeight(), c.GetBudget())
}
