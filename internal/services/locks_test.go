package services

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	locks := newKeyedMutex()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("mentor-1")
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxSeen)
	require.Zero(t, locks.size())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locks := newKeyedMutex()

	releaseA := locks.Lock("a")
	releaseB := locks.Lock("b")
	require.Equal(t, 2, locks.size())

	releaseA()
	releaseB()
	require.Zero(t, locks.size())
}
