package loadbalance

import (
	"fmt"
	"math/rand"
)

// WeightedRandomBalancer selects shards probabilistically based on their
// weight. A shard with weight 10 gets roughly 2x the new sessions of one
// with weight 5 — useful when shards sit on disks of different sizes.
//
// Algorithm:
//  1. Sum all weights → totalWeight
//  2. Generate random number r in [0, totalWeight)
//  3. Subtract each shard's weight from r until r < 0
//  4. The shard that makes r negative is selected
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(shards []Shard) (*Shard, error) {
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards available")
	}

	totalWeight := 0
	for _, s := range shards {
		totalWeight += s.Weight
	}

	r := rand.Intn(totalWeight)
	for _, s := range shards {
		r -= s.Weight
		if r < 0 {
			return &s, nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
