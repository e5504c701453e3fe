package cache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrInvalidWeight = errors.New("cache: item weight must be positive and within budget")

// Cache is a weight bounded LRU cache safe for concurrent use.
type Cache[V any] interface {
	// Insert adds or replaces the item for key, evicting least recently used
	// items until the cache is within its budget.
	Insert(key string, value V, weight int) error

	// Retrieve returns the item for key and marks it as recently used.
	Retrieve(key string) (V, bool)

	// GetWeight returns the total weight of cached items.
	GetWeight() int

	// GetBudget returns the maximum total weight.
	GetBudget() int

	Clear()
}

type cacheNode[V any] struct {
	next   *cacheNode[V]
	prev   *cacheNode[V]
	key    string
	value  V
	weight int
}

type cache[V any] struct {
	log *logrus.Entry

	mu     sync.Mutex
	head   *cacheNode[V]
	tail   *cacheNode[V]
	lookup map[string]*cacheNode[V]
	weight int
	budget int
}

// NewCache returns a new Cache that holds at most budget total weight.
func NewCache[V any](name string, budget int) Cache[V] {
	return &cache[V]{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":  "cache/Cache",
			"cache": name,
		}),
		lookup: make(map[string]*cacheNode[V]),
		budget: budget,
	}
}

// Insert implements Cache.Insert
func (c *cache[V]) Insert(key string, value V, weight int) error {
	if weight <= 0 || weight > c.budget {
		return ErrInvalidWeight
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lookup[key]; ok {
		c.unlink(existing)
		delete(c.lookup, key)
		c.weight -= existing.weight
	}

	node := &cacheNode[V]{
		key:    key,
		value:  value,
		weight: weight,
	}
	c.pushFront(node)
	c.lookup[key] = node
	c.weight += weight

	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)
		delete(c.lookup, evicted.key)
		c.weight -= evicted.weight

		c.log.WithFields(logrus.Fields{
			"key":          evicted.key,
			"weight":       evicted.weight,
			"spare_weight": c.budget - c.weight,
		}).Trace("cache eviction")
	}

	return nil
}

// Retrieve implements Cache.Retrieve
func (c *cache[V]) Retrieve(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.lookup[key]
	if !ok {
		var zero V
		return zero, false
	}

	if node != c.head {
		c.unlink(node)
		c.pushFront(node)
	}

	return node.value, true
}

// GetWeight implements Cache.GetWeight
func (c *cache[V]) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

// GetBudget implements Cache.GetBudget
func (c *cache[V]) GetBudget() int {
	return c.budget
}

// Clear implements Cache.Clear
func (c *cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head = nil
	c.tail = nil
	c.lookup = make(map[string]*cacheNode[V])
	c.weight = 0
}

func (c *cache[V]) pushFront(node *cacheNode[V]) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *cache[V]) unlink(node *cacheNode[V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.next = nil
	node.prev = nil
}
