package store

import (
	"context"
	"testing"
	"time"
)

func TestMemStoreAppendAndRange(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for seq := uint32(1); seq <= 3; seq++ {
		if err := s.Append(ctx, "sess-1", Out, seq, []byte{byte(seq)}, now); err != nil {
			t.Fatalf("Append(%d): %v", seq, err)
		}
	}

	recs, err := s.Range(ctx, "sess-1", Out, 1, 0)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, r := range recs {
		if r.Seq != uint32(i+1) {
			t.Errorf("record %d: expected seq %d, got %d", i, i+1, r.Seq)
		}
	}
}

func TestMemStoreAppendDuplicateRejected(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Append(ctx, "sess-1", In, 1, []byte("a"), now); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := s.Append(ctx, "sess-1", In, 1, []byte("b"), now); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemStoreRangeIsBoundedAndOrdered(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, seq := range []uint32{5, 1, 3, 2, 4} {
		if err := s.Append(ctx, "sess-1", Out, seq, nil, now); err != nil {
			t.Fatalf("Append(%d): %v", seq, err)
		}
	}

	recs, err := s.Range(ctx, "sess-1", Out, 2, 4)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records in [2,4], got %d", len(recs))
	}
	for i, want := range []uint32{2, 3, 4} {
		if recs[i].Seq != want {
			t.Errorf("position %d: expected seq %d, got %d", i, want, recs[i].Seq)
		}
	}
}

func TestMemStoreLastSeq(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if last, err := s.LastSeq(ctx, "sess-1", In); err != nil || last != 0 {
		t.Fatalf("expected 0 for empty stream, got %d, %v", last, err)
	}

	for seq := uint32(1); seq <= 5; seq++ {
		_ = s.Append(ctx, "sess-1", In, seq, nil, now)
	}

	last, err := s.LastSeq(ctx, "sess-1", In)
	if err != nil {
		t.Fatalf("LastSeq: %v", err)
	}
	if last != 5 {
		t.Errorf("expected LastSeq 5, got %d", last)
	}
}

func TestMemStoreDirectionsAreIndependent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.Append(ctx, "sess-1", In, 1, nil, now)
	_ = s.Append(ctx, "sess-1", Out, 1, nil, now)
	_ = s.Append(ctx, "sess-1", Out, 2, nil, now)

	lastIn, _ := s.LastSeq(ctx, "sess-1", In)
	lastOut, _ := s.LastSeq(ctx, "sess-1", Out)
	if lastIn != 1 || lastOut != 2 {
		t.Errorf("expected independent streams, got in=%d out=%d", lastIn, lastOut)
	}
}
