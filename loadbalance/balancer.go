// Package loadbalance picks a storage shard for a session's message log.
//
// The teacher used these same three strategies to spread RPC calls across
// service instances; here they spread sessions across MessageStore shards
// instead, so two sessions never contend on the same backend and a given
// session's log always lands on the same shard (consistent hashing) or is
// spread for raw throughput (round robin, weighted random).
//
// Three strategies are implemented:
//   - RoundRobin:      Equal-capacity shards, no affinity requirement
//   - WeightedRandom:  Heterogeneous shards (different disk/memory budgets)
//   - ConsistentHash:  Session affinity — a session's records always land
//     on the same shard across restarts, so Range/LastSeq never needs to
//     fan out across backends
package loadbalance

// Shard identifies one storage backend a session's records can be routed to.
type Shard struct {
	ID     string
	Weight int
}

// Balancer is the interface for shard-selection strategies.
// Pick is called once per session (at session creation), not per message.
type Balancer interface {
	// Pick selects one shard from the available list.
	Pick(shards []Shard) (*Shard, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
