package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the primary tier size when none is configured
	DefaultCapacity = 100
	// DefaultTTL applies when neither the caller nor the orchestrator sets one
	DefaultTTL = time.Hour
)

// Memory is the bounded in-process tier. Entries are evicted in insertion
// order once capacity is reached; overwriting a key counts as a new insertion.
type Memory struct {
	mu sync.Mutex

	capacity  int
	items     map[Key]*list.Element
	order     *list.List // front = oldest insertion
	clock     Clock
	evictions uint64
	closed    bool

	janitorEvery time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type memoryItem struct {
	key   Key
	entry Entry
}

// MemoryOption configures a Memory tier
type MemoryOption func(*Memory)

// WithCapacity bounds the number of entries; values <= 0 keep the default
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithClock replaces the wall clock
func WithClock(c Clock) MemoryOption {
	return func(m *Memory) { m.clock = c }
}

// WithJanitor sweeps expired entries every interval; 0 disables the sweep
// and leaves expiry to Get.
func WithJanitor(every time.Duration) MemoryOption {
	return func(m *Memory) { m.janitorEvery = every }
}

// NewMemory creates a primary tier. Call Close to stop the janitor.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		capacity: DefaultCapacity,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
		clock:    SystemClock,
	}
	for _, o := range opts {
		o(m)
	}

	if m.janitorEvery > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.wg.Add(1)
		go m.expiryLoop(ctx)
	}
	return m
}

// Name implements Tier
func (m *Memory) Name() string { return "memory" }

// Get implements Tier. Expired entries are purged on access.
func (m *Memory) Get(_ context.Context, key Key) Lookup {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return Miss()
	}
	it := el.Value.(*memoryItem)
	if it.entry.Expired(m.clock.Now()) {
		m.removeLocked(el)
		return Miss()
	}
	return Hit(it.entry.clone())
}

// Set implements Tier
func (m *Memory) Set(_ context.Context, key Key, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	entry.Value = cloneBytes(entry.Value)
	entry.InsertedAt = m.clock.Now()

	if el, ok := m.items[key]; ok {
		el.Value.(*memoryItem).entry = entry
		m.order.MoveToBack(el)
		return nil
	}

	if len(m.items) >= m.capacity {
		if oldest := m.order.Front(); oldest != nil {
			m.removeLocked(oldest)
			m.evictions++
		}
	}

	m.items[key] = m.order.PushBack(&memoryItem{key: key, entry: entry})
	return nil
}

// Invalidate implements Tier
func (m *Memory) Invalidate(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.removeLocked(el)
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet purged
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Capacity returns the configured bound
func (m *Memory) Capacity() int {
	return m.capacity
}

// Evictions returns how many entries were dropped for capacity
func (m *Memory) Evictions() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

// Keys returns keys from oldest to newest insertion
func (m *Memory) Keys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Key, 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*memoryItem).key)
	}
	return out
}

// Close stops the janitor. It is safe to call more than once.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Memory) expiryLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.janitorEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			m.purgeExpiredLocked(m.clock.Now())
			m.mu.Unlock()
		}
	}
}

func (m *Memory) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*memoryItem).entry.Expired(now) {
			m.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

func (m *Memory) removeLocked(el *list.Element) {
	delete(m.items, el.Value.(*memoryItem).key)
	m.order.Remove(el)
}

var _ Tier = (*Memory)(nil)
