// Package lock provides per-key mutual exclusion, used to keep a single
// pipeline run per user name in flight.
package lock

import "sync"

// keyMutex wraps a mutex with a count of holders and contenders so idle
// entries can be dropped from the map.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyedLock hands out one mutex per string key.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex
}

// NewKeyedLock creates an empty KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*keyMutex)}
}

func (kl *KeyedLock) acquireRef(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km, ok := kl.locks[key]
	if !ok {
		km = &keyMutex{}
		kl.locks[key] = km
	}
	km.refs++
	return km
}

func (kl *KeyedLock) releaseRef(key string, km *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km.refs--
	if km.refs == 0 {
		delete(kl.locks, key)
	}
}

// TryLock acquires the lock for key without blocking and reports whether it
// succeeded.
func (kl *KeyedLock) TryLock(key string) bool {
	km := kl.acquireRef(key)
	if km.mu.TryLock() {
		return true
	}
	kl.releaseRef(key, km)
	return false
}

// Unlock releases the lock for key. Unlocking a key nobody holds is a no-op.
func (kl *KeyedLock) Unlock(key string) {
	kl.mu.Lock()
	km, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	km.mu.Unlock()
	kl.releaseRef(key, km)
}

// TryWithLock runs fn only if the lock for key is free, returning ErrLocked
// otherwise. The lock is released when fn returns.
func (kl *KeyedLock) TryWithLock(key string, fn func() error) error {
	if !kl.TryLock(key) {
		return ErrLocked
	}
	defer kl.Unlock(key)
	return fn()
}
