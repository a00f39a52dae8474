package common

import (
	"sync"
)

// KeyedMutex hands out one mutex per key so work on the same key is
// serialized while different keys proceed in parallel.
type KeyedMutex struct {
	mutexes  map[string]*sync.Mutex
	mapMutex sync.RWMutex
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		mutexes: make(map[string]*sync.Mutex),
	}
}

// Get returns the mutex for key, creating it on first use
func (km *KeyedMutex) Get(key string) *sync.Mutex {
	// Fast path: read lock to check if mutex exists
	km.mapMutex.RLock()
	mutex := km.mutexes[key]
	km.mapMutex.RUnlock()
	if mutex != nil {
		return mutex
	}

	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	// Double-check: another goroutine might have created it
	if mutex, exists := km.mutexes[key]; exists {
		return mutex
	}
	mutex = &sync.Mutex{}
	km.mutexes[key] = mutex
	return mutex
}

// Lock locks key and returns the matching unlock function
func (km *KeyedMutex) Lock(key string) func() {
	mutex := km.Get(key)
	mutex.Lock()
	return mutex.Unlock
}

// TryLock locks key only if nobody holds it
func (km *KeyedMutex) TryLock(key string) (func(), bool) {
	mutex := km.Get(key)
	if !mutex.TryLock() {
		return nil, false
	}
	return mutex.Unlock, true
}

// Retain drops mutexes for keys that are not in active and returns how many
// were removed. Mutexes currently held are kept. Keys being dropped must no
// longer be in use by callers.
func (km *KeyedMutex) Retain(active []string) int {
	activeSet := make(map[string]struct{}, len(active))
	for _, key := range active {
		activeSet[key] = struct{}{}
	}

	km.mapMutex.Lock()
	defer km.mapMutex.Unlock()

	removed := 0
	for key, mutex := range km.mutexes {
		if _, ok := activeSet[key]; ok {
			continue
		}
		if !mutex.TryLock() {
			continue
		}
		mutex.Unlock()
		delete(km.mutexes, key)
		removed++
	}
	return removed
}

// Len returns the current number of mutexes
func (km *KeyedMutex) Len() int {
	km.mapMutex.RLock()
	defer km.mapMutex.RUnlock()
	return len(km.mutexes)
}
