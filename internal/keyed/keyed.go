// Package keyed provides a mutex per string key, used to serialize
// read-modify-write cycles against the same user record.
package keyed

import "sync"

// Mutex hands out one lock per key. Entries are reference-counted and
// removed once the last holder unlocks, so the map does not grow with the
// number of distinct keys ever seen.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewMutex() *Mutex {
	return &Mutex{
		entries: make(map[string]*entry),
	}
}

// Lock acquires the lock for key, blocking while another goroutine holds it.
func (m *Mutex) Lock(key string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key. It must pair with a prior Lock.
func (m *Mutex) Unlock(key string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
