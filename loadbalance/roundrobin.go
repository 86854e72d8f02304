package loadbalance

import (
	"fmt"
	"sync/atomic"
)

// RoundRobinBalancer distributes new sessions evenly across all shards in
// order. Uses an atomic counter for lock-free, goroutine-safe operation.
//
// Best for: shards with similar capacity where cross-shard session
// affinity doesn't matter.
type RoundRobinBalancer struct {
	counter int64
}

func (b *RoundRobinBalancer) Pick(shards []Shard) (*Shard, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(shards))
	return &shards[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
