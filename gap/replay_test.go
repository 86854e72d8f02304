package gap

import (
	"testing"

	"fixcore/message"
)

func TestPlanResendCollapsesAdministrativeAndReplaysApplication(t *testing.T) {
	// Mirrors spec.md §8 Scenario S6: 10 Logon, 11 Heartbeat, 12 NewOrder,
	// 13 Heartbeat, 14 NewOrder.
	stored := []StoredOutbound{
		{Seq: 10, MsgType: message.MsgTypeLogon},
		{Seq: 11, MsgType: message.MsgTypeHeartbeat},
		{Seq: 12, MsgType: message.MsgTypeNewOrderSingle, Frame: []byte("order-12")},
		{Seq: 13, MsgType: message.MsgTypeHeartbeat},
		{Seq: 14, MsgType: message.MsgTypeNewOrderSingle, Frame: []byte("order-14")},
	}

	steps := PlanResend(10, 14, stored, 15)
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d: %+v", len(steps), steps)
	}

	if steps[0].Action != ActionGapFill || steps[0].FromSeq != 10 || steps[0].ToSeq != 11 || steps[0].NewSeqNo != 12 {
		t.Errorf("step 0: expected GapFill [10,11]->12, got %+v", steps[0])
	}
	if steps[1].Action != ActionReplay || steps[1].OriginalSeq != 12 {
		t.Errorf("step 1: expected replay of 12, got %+v", steps[1])
	}
	if steps[2].Action != ActionGapFill || steps[2].FromSeq != 13 || steps[2].ToSeq != 13 || steps[2].NewSeqNo != 14 {
		t.Errorf("step 2: expected GapFill [13,13]->14, got %+v", steps[2])
	}
	if steps[3].Action != ActionReplay || steps[3].OriginalSeq != 14 {
		t.Errorf("step 3: expected replay of 14, got %+v", steps[3])
	}
}

func TestPlanResendNothingSentYieldsSingleGapFill(t *testing.T) {
	steps := PlanResend(1, 0, nil, 1)
	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	if steps[0].Action != ActionGapFill || steps[0].FromSeq != 1 || steps[0].NewSeqNo != 1 {
		t.Errorf("expected no-op GapFill to current nextOutbound, got %+v", steps[0])
	}
}

func TestPlanResendUnboundedEndUsesLastSent(t *testing.T) {
	stored := []StoredOutbound{
		{Seq: 1, MsgType: message.MsgTypeNewOrderSingle, Frame: []byte("a")},
		{Seq: 2, MsgType: message.MsgTypeNewOrderSingle, Frame: []byte("b")},
	}
	steps := PlanResend(1, 0, stored, 3)
	if len(steps) != 2 {
		t.Fatalf("expected 2 replay steps, got %d: %+v", len(steps), steps)
	}
	if steps[0].OriginalSeq != 1 || steps[1].OriginalSeq != 2 {
		t.Errorf("expected replays of 1 and 2 in order, got %+v", steps)
	}
}
