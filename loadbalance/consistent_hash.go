package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
)

// ConsistentHashBalancer maps a session id to a shard using a hash ring.
// The same session id always maps to the same shard (until the ring
// changes), which is exactly the affinity store.Sharded needs: a
// session's Append/Range/LastSeq calls must all hit the same backend.
//
// Virtual nodes: each real shard is mapped to N virtual nodes on the ring.
// Without virtual nodes, a handful of shards can cluster together on the
// ring, causing uneven load distribution. 100 virtual nodes per shard
// gives statistical uniformity.
type ConsistentHashBalancer struct {
	replicas int
	ring     []uint32
	nodes    map[uint32]Shard
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per shard.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		ring:     []uint32{},
		nodes:    make(map[uint32]Shard),
	}
}

// Add places a shard onto the hash ring with N virtual nodes.
// Each virtual node is hashed from "{id}#{i}" to spread evenly across the ring.
func (b *ConsistentHashBalancer) Add(shard Shard) {
	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", shard.ID, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = shard
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// PickKey finds the shard responsible for the given key (a session id).
// It hashes the key, then binary-searches for the first node >= hash on
// the ring, wrapping around to the first node if the hash exceeds all of
// them.
func (b *ConsistentHashBalancer) PickKey(key string) (*Shard, error) {
	if len(b.ring) == 0 {
		return nil, fmt.Errorf("no shards available")
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	shard := b.nodes[b.ring[idx]]
	return &shard, nil
}

// Pick satisfies Balancer by hashing the first shard's ID — callers that
// need session affinity should use PickKey directly instead.
func (b *ConsistentHashBalancer) Pick(shards []Shard) (*Shard, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards available")
	}
	return b.PickKey(shards[0].ID)
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
