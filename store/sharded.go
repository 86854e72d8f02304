package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fixcore/loadbalance"
)

// Sharded fans a MessageStore contract out across several backends, keyed
// by session id through a consistent-hash ring so a session's Append,
// Range, and LastSeq calls always land on the same backend — per
// spec.md §6's requirement that a single session's log never splits
// across stores.
type Sharded struct {
	ring     *loadbalance.ConsistentHashBalancer
	backends map[string]MessageStore

	mu       sync.Mutex
	assigned map[string]string // sessionID -> shard ID, fixed at first use
}

// NewSharded builds a Sharded store from a set of named backends. Each map
// key becomes the Shard.ID added to the ring.
func NewSharded(backends map[string]MessageStore) *Sharded {
	ring := loadbalance.NewConsistentHashBalancer()
	for id := range backends {
		ring.Add(loadbalance.Shard{ID: id, Weight: 1})
	}
	return &Sharded{
		ring:     ring,
		backends: backends,
		assigned: make(map[string]string),
	}
}

func (s *Sharded) backendFor(sessionID string) (MessageStore, error) {
	s.mu.Lock()
	shardID, ok := s.assigned[sessionID]
	if !ok {
		shard, err := s.ring.PickKey(sessionID)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("store: no shard for session %s: %w", sessionID, err)
		}
		shardID = shard.ID
		s.assigned[sessionID] = shardID
	}
	s.mu.Unlock()

	backend, ok := s.backends[shardID]
	if !ok {
		return nil, fmt.Errorf("store: shard %s has no registered backend", shardID)
	}
	return backend, nil
}

func (s *Sharded) Append(ctx context.Context, sessionID string, direction Direction, seq uint32, frame []byte, wallTime time.Time) error {
	backend, err := s.backendFor(sessionID)
	if err != nil {
		return err
	}
	return backend.Append(ctx, sessionID, direction, seq, frame, wallTime)
}

func (s *Sharded) Range(ctx context.Context, sessionID string, direction Direction, beginSeq, endSeq uint32) ([]Record, error) {
	backend, err := s.backendFor(sessionID)
	if err != nil {
		return nil, err
	}
	return backend.Range(ctx, sessionID, direction, beginSeq, endSeq)
}

func (s *Sharded) LastSeq(ctx context.Context, sessionID string, direction Direction) (uint32, error) {
	backend, err := s.backendFor(sessionID)
	if err != nil {
		return 0, err
	}
	return backend.LastSeq(ctx, sessionID, direction)
}

func (s *Sharded) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
