package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockTableExclusion(t *testing.T) {
	table := newLockTable()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.Lock("instance-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestLockTableEntriesReleased(t *testing.T) {
	table := newLockTable()
	unlock := table.Lock("instance-1")
	unlock()
	for i := range table.shards {
		require.Empty(t, table.shards[i].locks)
	}
}

func TestLockTableIndependentIds(t *testing.T) {
	table := newLockTable()
	unlockA := table.Lock("instance-a")
	// a different id must not block even if it hashes to the same shard
	done := make(chan struct{})
	go func() {
		unlockB := table.Lock("instance-b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
