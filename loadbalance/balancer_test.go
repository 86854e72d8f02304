package loadbalance

import (
	"fmt"
	"testing"
)

var testShards = []Shard{
	{ID: "shard-0", Weight: 10},
	{ID: "shard-1", Weight: 5},
	{ID: "shard-2", Weight: 10},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		s, err := b.Pick(testShards)
		if err != nil {
			t.Fatal(err)
		}
		results[i] = s.ID
	}

	s, _ := b.Pick(testShards)
	if s.ID != results[0] {
		t.Fatalf("expect wrap around to %s, got %s", results[0], s.ID)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick([]Shard{})
	if err == nil {
		t.Fatal("expect error for empty shards")
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		s, err := b.Pick(testShards)
		if err != nil {
			t.Fatal(err)
		}
		counts[s.ID]++
	}

	ratio := float64(counts["shard-0"]) / float64(counts["shard-1"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio shard-0/shard-1 = %.2f, expect ~2.0", ratio)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()
	for _, s := range testShards {
		b.Add(s)
	}

	inst1, _ := b.PickKey("session-123")
	inst2, _ := b.PickKey("session-123")
	if inst1.ID != inst2.ID {
		t.Fatalf("same session id mapped to different shards: %s vs %s", inst1.ID, inst2.ID)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, _ := b.PickKey(fmt.Sprintf("session-%d", i))
		seen[s.ID] = true
	}

	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different shards, got %d", len(seen))
	}
}

func TestConsistentHashEmptyRing(t *testing.T) {
	b := NewConsistentHashBalancer()
	if _, err := b.PickKey("anything"); err == nil {
		t.Fatal("expect error when ring has no shards")
	}
}
