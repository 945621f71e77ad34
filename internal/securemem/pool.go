package securemem

import (
	"fmt"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// Pool holds the credentials for all configured providers, keyed by provider
// name. Values are destroyed when replaced or removed.
type Pool struct {
	mu    sync.RWMutex
	items map[string]*String
}

// NewPool creates an empty credential pool.
func NewPool() *Pool {
	return &Pool{
		items: make(map[string]*String),
	}
}

// Set stores a value under key, destroying any previous value first.
func (p *Pool) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.items[key]; ok {
		existing.Destroy()
	}
	p.items[key] = NewString(value)
}

// GetString retrieves a value as a plain string, empty when absent.
// WARNING: the returned string lives in regular memory.
func (p *Pool) GetString(key string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if s, ok := p.items[key]; ok {
		return s.String()
	}
	return ""
}

// Has returns true if a value exists for key.
func (p *Pool) Has(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.items[key]
	return ok
}

// Delete securely removes a value.
func (p *Pool) Delete(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.items[key]; ok {
		s.Destroy()
		delete(p.items, key)
	}
}

// Clear securely removes all values.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, s := range p.items {
		s.Destroy()
		delete(p.items, key)
	}
}

// Count returns the number of stored values.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// String lists keys only, never values.
func (p *Pool) String() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := make([]string, 0, len(p.items))
	for key := range p.items {
		keys = append(keys, key)
	}
	return fmt.Sprintf("SecurePool{%s}", strings.Join(keys, ", "))
}

// Init initializes memguard. Call once at startup.
func Init() {
	memguard.CatchInterrupt()
}

// Cleanup purges memguard's internal buffers. Call before exit.
func Cleanup() {
	memguard.Purge()
}
