package derive

import (
	"sync"

	"github.com/five82/marquee/internal/cache"
)

// Memo caches the result of compute until an entry matching depends
// changes in the store.
type Memo[T any] struct {
	mu      sync.Mutex
	compute func() T
	value   T
	valid   bool
	stop    func()
}

// NewMemo watches store for changes to keys matched by depends.
func NewMemo[T any](store *cache.Store, depends func(cache.Key) bool, compute func() T) *Memo[T] {
	m := &Memo[T]{compute: compute}
	m.stop = store.Watch(func(k cache.Key) {
		if depends(k) {
			m.mu.Lock()
			m.valid = false
			m.mu.Unlock()
		}
	})
	return m
}

// Get returns the cached value, recomputing it if a dependency changed.
func (m *Memo[T]) Get() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid {
		m.value = m.compute()
		m.valid = true
	}
	return m.value
}

// Close stops watching the store.
func (m *Memo[T]) Close() {
	if m.stop != nil {
		m.stop()
	}
}
