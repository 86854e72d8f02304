package registry

import (
	"context"
	"testing"
	"time"

	"fixcore/session"
)

func newEntry(id string) Entry {
	sess := session.New(id, "SELF", "PEER")
	return Entry{Session: sess}
}

func TestCreateAndLookup(t *testing.T) {
	r := New(0)
	if err := r.Create("sess-1", newEntry("sess-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	entry, ok := r.Lookup("sess-1")
	if !ok {
		t.Fatal("expected lookup to find session")
	}
	if entry.Session.ID != "sess-1" {
		t.Errorf("expected session id sess-1, got %s", entry.Session.ID)
	}
}

func TestCreateDuplicateRejected(t *testing.T) {
	r := New(0)
	_ = r.Create("sess-1", newEntry("sess-1"))
	if err := r.Create("sess-1", newEntry("sess-1")); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateEnforcesMaxSessions(t *testing.T) {
	r := New(1)
	if err := r.Create("sess-1", newEntry("sess-1")); err != nil {
		t.Fatalf("Create sess-1: %v", err)
	}
	if err := r.Create("sess-2", newEntry("sess-2")); err != ErrLimitReached {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
}

func TestRemoveFreesSlot(t *testing.T) {
	r := New(1)
	_ = r.Create("sess-1", newEntry("sess-1"))
	r.Remove("sess-1")
	if err := r.Create("sess-2", newEntry("sess-2")); err != nil {
		t.Fatalf("expected slot freed after Remove, got %v", err)
	}
}

func TestSnapshotReturnsAllSessions(t *testing.T) {
	r := New(0)
	_ = r.Create("sess-1", newEntry("sess-1"))
	_ = r.Create("sess-2", newEntry("sess-2"))

	stats := r.Snapshot()
	if len(stats) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(stats))
	}
}

func TestShutdownAllClosesEverySession(t *testing.T) {
	r := New(0)
	_ = r.Create("sess-1", newEntry("sess-1"))
	_ = r.Create("sess-2", newEntry("sess-2"))

	closed := make(chan string, 2)
	err := r.ShutdownAll(context.Background(), time.Second, func(ctx context.Context, e Entry) error {
		closed <- e.Session.ID
		return nil
	})
	if err != nil {
		t.Fatalf("ShutdownAll: %v", err)
	}
	close(closed)
	count := 0
	for range closed {
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 sessions closed, got %d", count)
	}
}

func TestShutdownAllTimesOutOnSlowSession(t *testing.T) {
	r := New(0)
	_ = r.Create("sess-1", newEntry("sess-1"))

	err := r.ShutdownAll(context.Background(), 10*time.Millisecond, func(ctx context.Context, e Entry) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
