package service

import "sync"

// IdentityLocker serializes profile mutations per identity id within the process
type IdentityLocker struct {
	mu    sync.Mutex
	locks map[int64]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// NewIdentityLocker creates an empty locker
func NewIdentityLocker() *IdentityLocker {
	return &IdentityLocker{locks: make(map[int64]*identityLock)}
}

// Lock blocks until id is free and returns the matching unlock func.
// Entries are dropped once nobody holds or waits on them.
func (l *IdentityLocker) Lock(id int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &identityLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of ids currently held or awaited
func (l *IdentityLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
