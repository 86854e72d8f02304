package message

import (
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	m := New()
	m.Set(TagBeginString, BeginString)
	m.SetInt(TagMsgSeqNum, 42)
	m.Set(TagSenderCompID, "PEER")

	if v, ok := m.Get(TagBeginString); !ok || v != BeginString {
		t.Errorf("BeginString mismatch: got %q, ok=%v", v, ok)
	}
	seq, err := m.MsgSeqNum()
	if err != nil {
		t.Fatalf("MsgSeqNum: %v", err)
	}
	if seq != 42 {
		t.Errorf("MsgSeqNum mismatch: got %d, want 42", seq)
	}
	if m.SenderCompID() != "PEER" {
		t.Errorf("SenderCompID mismatch: got %q", m.SenderCompID())
	}
}

func TestSetOverwriteKeepsPosition(t *testing.T) {
	m := New()
	m.Set(TagMsgSeqNum, "1")
	m.Set(TagSenderCompID, "A")
	m.Set(TagMsgSeqNum, "2")

	tags := m.Tags()
	if len(tags) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(tags))
	}
	if tags[0] != TagMsgSeqNum || tags[1] != TagSenderCompID {
		t.Errorf("overwrite should not move field position, got order %v", tags)
	}
	v, _ := m.Get(TagMsgSeqNum)
	if v != "2" {
		t.Errorf("expected last occurrence to win, got %q", v)
	}
}

func TestEqualIgnoresOrder(t *testing.T) {
	a := New()
	a.Set(1, "x")
	a.Set(2, "y")

	b := New()
	b.Set(2, "y")
	b.Set(1, "x")

	if !a.Equal(b) {
		t.Error("expected tag-set equality regardless of field order")
	}
}

func TestSendingTimeRoundTrip(t *testing.T) {
	m := New()
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	m.SetSendingTime(ts)

	got, err := m.SendingTime()
	if err != nil {
		t.Fatalf("SendingTime: %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("SendingTime mismatch: got %v, want %v", got, ts)
	}
}

func TestGetBoolDefaultsFalse(t *testing.T) {
	m := New()
	if m.GetBool(TagPossDupFlag) {
		t.Error("expected absent flag to default false")
	}
	m.Set(TagPossDupFlag, "Y")
	if !m.GetBool(TagPossDupFlag) {
		t.Error("expected Y to be true")
	}
}
