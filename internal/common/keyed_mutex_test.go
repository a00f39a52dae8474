package common

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SameKeySerialized(t *testing.T) {
	km := NewKeyedMutex()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("site-a")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 1, km.Len())
}

func TestKeyedMutex_TryLock(t *testing.T) {
	km := NewKeyedMutex()

	unlock, ok := km.TryLock("a")
	require.True(t, ok)

	_, ok = km.TryLock("a")
	assert.False(t, ok)

	otherUnlock, ok := km.TryLock("b")
	require.True(t, ok)
	otherUnlock()

	unlock()
	unlock, ok = km.TryLock("a")
	require.True(t, ok)
	unlock()
}

func TestKeyedMutex_Retain(t *testing.T) {
	km := NewKeyedMutex()
	km.Get("a")
	km.Get("b")
	held := km.Lock("c")
	defer held()

	removed := km.Retain([]string{"a"})

	assert.Equal(t, 1, removed, "b is dropped, c is held")
	assert.Equal(t, 2, km.Len())
}
