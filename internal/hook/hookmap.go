package hook

import (
	"slices"
	"sync"
)

// HookMapInterceptor observes a HookMap. Factory wraps each hook as it is
// created and may return a replacement.
type HookMapInterceptor[K comparable, T, R any] struct {
	Name    string
	Factory func(key K, h *Hook[T, R]) *Hook[T, R]
}

// HookMap lazily creates and memoizes one hook per key.
type HookMap[K comparable, T, R any] struct {
	name    string
	factory func(K) *Hook[T, R]

	mu           sync.RWMutex
	hooks        map[K]*Hook[T, R]
	keys         []K
	interceptors []HookMapInterceptor[K, T, R]
}

// NewHookMap creates a HookMap that builds missing hooks with factory.
func NewHookMap[K comparable, T, R any](factory func(K) *Hook[T, R], opts ...HookOption) *HookMap[K, T, R] {
	var cfg hookConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HookMap[K, T, R]{
		name:    cfg.name,
		factory: factory,
		hooks:   make(map[K]*Hook[T, R]),
	}
}

// Name returns the map's debug name.
func (m *HookMap[K, T, R]) Name() string {
	return m.name
}

// Get returns the hook for key if it has been created.
func (m *HookMap[K, T, R]) Get(key K) (*Hook[T, R], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hooks[key]
	return h, ok
}

// For returns the hook for key, creating it if needed. A new hook passes
// through every map interceptor installed so far, in installation order.
func (m *HookMap[K, T, R]) For(key K) *Hook[T, R] {
	if h, ok := m.Get(key); ok {
		return h
	}

	m.mu.RLock()
	ics := m.interceptors
	m.mu.RUnlock()

	h := m.factory(key)
	for _, ic := range ics {
		if ic.Factory != nil {
			h = ic.Factory(key, h)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have won the race.
	if existing, ok := m.hooks[key]; ok {
		return existing
	}
	m.hooks[key] = h
	m.keys = append(m.keys, key)
	return h
}

// Intercept installs a map interceptor. It applies to hooks created after
// this call only.
func (m *HookMap[K, T, R]) Intercept(ic HookMapInterceptor[K, T, R]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]HookMapInterceptor[K, T, R], len(m.interceptors), len(m.interceptors)+1)
	copy(next, m.interceptors)
	m.interceptors = append(next, ic)
}

// Keys returns the created keys in creation order.
func (m *HookMap[K, T, R]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.keys)
}

// Len returns the number of created hooks.
func (m *HookMap[K, T, R]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks)
}

// IsUsed reports whether any created hook is used.
func (m *HookMap[K, T, R]) IsUsed() bool {
	for _, key := range m.Keys() {
		if h, ok := m.Get(key); ok && h.IsUsed() {
			return true
		}
	}
	return false
}

// QueryStageRange returns a view of the map whose hooks are queried at r.
func (m *HookMap[K, T, R]) QueryStageRange(r StageRange) *QueriedHookMap[K, T, R] {
	return &QueriedHookMap[K, T, R]{m: m, rng: r}
}

// QueriedHookMap is a HookMap whose lookups return queried hooks.
type QueriedHookMap[K comparable, T, R any] struct {
	m   *HookMap[K, T, R]
	rng StageRange
}

// Range returns the queried stage range.
func (q *QueriedHookMap[K, T, R]) Range() StageRange {
	return q.rng
}

// Get returns the queried hook for key if the hook has been created.
func (q *QueriedHookMap[K, T, R]) Get(key K) (*QueriedHook[T, R], bool) {
	h, ok := q.m.Get(key)
	if !ok {
		return nil, false
	}
	return h.QueryStageRange(q.rng), true
}

// For returns the queried hook for key, creating the hook if needed.
func (q *QueriedHookMap[K, T, R]) For(key K) *QueriedHook[T, R] {
	return q.m.For(key).QueryStageRange(q.rng)
}

// IsUsed reports whether any created hook is used within the range.
func (q *QueriedHookMap[K, T, R]) IsUsed() bool {
	for _, key := range q.m.Keys() {
		if qh, ok := q.Get(key); ok && qh.IsUsed() {
			return true
		}
	}
	return false
}
