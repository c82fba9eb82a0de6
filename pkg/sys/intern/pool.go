// Package intern canonicalizes strings that repeat across a history scan,
// such as file paths and author names reported once per commit.
package intern

import "sync"

type Pool struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{store: make(map[string]string, 1024)}
}

var globalPool = NewPool()

// String returns the canonical copy of s from the global pool.
func String(s string) string {
	return globalPool.String(s)
}

// String returns the canonical copy of s, storing s on first sight.
func (p *Pool) String(s string) string {
	if s == "" {
		return ""
	}

	p.mu.RLock()
	canonical, ok := p.store[s]
	p.mu.RUnlock()
	if ok {
		return canonical
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check
	if canonical, ok := p.store[s]; ok {
		return canonical
	}
	p.store[s] = s
	return s
}

// Len reports how many distinct strings the pool holds.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.store)
}

// Reset clears the global pool.
func Reset() {
	globalPool.mu.Lock()
	defer globalPool.mu.Unlock()
	globalPool.store = make(map[string]string, 1024)
}
