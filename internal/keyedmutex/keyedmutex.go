// Package keyedmutex provides named mutual exclusion for backup and restore
// operations. At most one operation may hold a given key at a time; a second
// acquisition attempt fails immediately instead of queueing, so callers can
// surface "operation already in progress" to the user.
package keyedmutex

import (
	"errors"
	"sync"
)

// ErrOperationInProgress is returned when a backup or restore already holds
// the lock for a collection. The root package re-exports it.
var ErrOperationInProgress = errors.New("another operation is in progress for this collection")

// KeyedMutex guards a dynamic set of string keys.
// The zero value is not usable; call New.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// New creates an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{
		held: make(map[string]struct{}),
	}
}

// TryLock acquires key if it is free. It never blocks; it returns false when
// another holder owns the key.
func (k *KeyedMutex) TryLock(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, taken := k.held[key]; taken {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

// Unlock releases key. Unlocking a key that is not held is a no-op, so
// cleanup paths can release unconditionally.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.held, key)
}

// Held reports whether key is currently locked.
func (k *KeyedMutex) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, taken := k.held[key]
	return taken
}
