package cache

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"time"
)

// entry holds a stored value with its expiration bookkeeping.
type entry struct {
	deadline  time.Time // absolute deadline, zero = none
	expiresAt time.Time // effective expiry, zero = never
	value     []byte
	key       string
	sliding   time.Duration
}

func (e *entry) isExpired(now time.Time) bool {
	if e.expiresAt.IsZero() {
		return false
	}
	return now.After(e.expiresAt)
}

// touch slides the effective expiry forward.
func (e *entry) touch(now time.Time) {
	e.expiresAt = nextExpiry(e.deadline, e.sliding, now)
}

// Memory is an in-process Store with absolute and sliding expiration and
// optional LRU eviction when a maximum entry count is configured.
//
// It uses a hash map for O(1) lookups and a doubly-linked list for O(1)
// LRU eviction ordering. The most recently accessed items are at the
// front of the list; the least recently used are at the back.
type Memory struct {
	items    map[string]*list.Element
	eviction *list.List
	opts     *memoryOptions
	onEvict  func(key string, value []byte)
	done     chan struct{}
	mu       sync.Mutex
	closed   bool
}

// NewMemory creates a new in-memory store.
//
// Example:
//
//	s := cache.NewMemory(
//	    cache.WithCleanupInterval(30 * time.Second),
//	    cache.WithMaxEntries(10000),
//	)
//	defer s.Close()
func NewMemory(opts ...MemoryOption) *Memory {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		opts:     o,
		done:     make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

// SetEvictCallback sets a callback function that is called when items
// are evicted from the store. This includes LRU eviction, expiration
// cleanup, manual removal, and clearing.
func (m *Memory) SetEvictCallback(fn func(key string, value []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Get retrieves a copy of the value stored under key and slides its expiry.
// Accessing a key marks it as recently used for LRU purposes.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	e, elem, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}

	e.touch(m.opts.now())
	m.eviction.MoveToFront(elem)

	return slices.Clone(e.value), nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte, opts EntryOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	now := m.opts.now()
	if err := opts.Validate(now); err != nil {
		return err
	}

	e := &entry{
		key:      key,
		value:    slices.Clone(value),
		deadline: opts.deadline(now),
		sliding:  opts.SlidingExpiration,
	}
	e.touch(now)

	// Update existing entry.
	if elem, ok := m.items[key]; ok {
		elem.Value = e
		m.eviction.MoveToFront(elem)
		return nil
	}

	// Evict LRU entry if at capacity.
	if m.opts.maxEntries > 0 && len(m.items) >= m.opts.maxEntries {
		m.evictOldest()
	}

	m.items[key] = m.eviction.PushFront(e)

	return nil
}

// Refresh slides the expiry of key without returning its value.
func (m *Memory) Refresh(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if e, _, ok := m.lookup(key); ok {
		e.touch(m.opts.now())
	}

	return nil
}

// Remove deletes key from the store.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}

	return nil
}

// Has checks whether key exists and has not expired.
func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}

	_, _, ok := m.lookup(key)
	return ok, nil
}

// Len returns the number of entries, including expired ones not yet collected.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Clear removes all entries from the store.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.onEvict != nil {
		for _, elem := range m.items {
			e := elem.Value.(*entry)
			m.onEvict(e.key, e.value)
		}
	}

	m.items = make(map[string]*list.Element)
	m.eviction.Init()

	return nil
}

// Close stops the background janitor goroutine and marks the store as closed.
// Close is idempotent.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)

	return nil
}

// lookup returns the live entry for key, dropping it if it has expired.
// Caller must hold the mutex.
func (m *Memory) lookup(key string) (*entry, *list.Element, bool) {
	elem, ok := m.items[key]
	if !ok {
		return nil, nil, false
	}

	e := elem.Value.(*entry)
	if e.isExpired(m.opts.now()) {
		m.removeElement(elem)
		return nil, nil, false
	}

	return e, elem, true
}

// janitor periodically removes expired entries.
func (m *Memory) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

// deleteExpired removes all expired entries from back to front.
func (m *Memory) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	for elem := m.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry).isExpired(now) {
			m.removeElement(elem)
		}
		elem = prev
	}
}

// evictOldest removes the least recently used entry.
// Caller must hold the mutex.
func (m *Memory) evictOldest() {
	if elem := m.eviction.Back(); elem != nil {
		m.removeElement(elem)
	}
}

// removeElement removes a specific element and triggers the eviction callback.
// Caller must hold the mutex.
func (m *Memory) removeElement(elem *list.Element) {
	m.eviction.Remove(elem)
	e := elem.Value.(*entry)
	delete(m.items, e.key)

	if m.onEvict != nil {
		m.onEvict(e.key, e.value)
	}
}

var _ Store = (*Memory)(nil)
