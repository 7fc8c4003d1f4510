// Package keylock provides per-key mutual exclusion. The reconciler and the
// expiry sweep serialize the read-merge-write sequence for one external
// reference through a shared KeyLock; updates to different keys proceed
// independently.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock is a set of named mutexes. Idle keys hold no memory: an entry is
// removed as soon as the last holder or waiter releases it.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{
		entries: make(map[string]*entry),
	}
}

// Lock blocks until the mutex for key is held by the caller.
func (l *KeyLock) Lock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Calling Unlock for a key that is not
// held is a programming error and panics, matching sync.Mutex semantics.
func (l *KeyLock) Unlock(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		l.mu.Unlock()
		panic("keylock: unlock of unlocked key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}

// Do runs fn while holding the mutex for key.
func (l *KeyLock) Do(key string, fn func() error) error {
	l.Lock(key)
	defer l.Unlock(key)
	return fn()
}
