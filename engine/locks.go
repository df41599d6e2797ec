package engine

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

const lockShardCount = 64

// lockTable hands out one exclusive lock per instance id. Entries are
// refcounted and dropped when the last holder releases, so the table
// stays bounded by the number of in-flight operations. Shards only
// reduce contention on the bookkeeping map; exclusivity is per id, and
// two different instances never block each other's critical sections.
type lockTable struct {
	shards [lockShardCount]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*instanceLock
}

type instanceLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	t := &lockTable{}
	for i := range t.shards {
		t.shards[i].locks = make(map[string]*instanceLock)
	}
	return t
}

// Lock acquires the instance's lock and returns the release func.
func (t *lockTable) Lock(instanceId string) func() {
	shard := &t.shards[murmur3.Sum32([]byte(instanceId))%lockShardCount]
	shard.mu.Lock()
	l, ok := shard.locks[instanceId]
	if !ok {
		l = &instanceLock{}
		shard.locks[instanceId] = l
	}
	l.refs++
	shard.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		shard.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(shard.locks, instanceId)
		}
		shard.mu.Unlock()
	}
}
