package attendance

import "sync"

// keyLock hands out one mutex per identity. Entries are reference counted
// and removed once nobody holds or waits for them.
type keyLock struct {
	mu    sync.Mutex
	locks map[int64]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[int64]*keyEntry)}
}

// Lock blocks until the lock for key is held and returns its unlock function.
func (k *keyLock) Lock(key int64) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size returns the number of live entries.
func (k *keyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
