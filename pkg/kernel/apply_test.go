// Copyright 2025 Certen Protocol

package kernel

import (
	"testing"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/registry"
)

func transactional(t *testing.T) *registry.OperatorRegistry {
	t.Helper()
	reg, err := registry.KernelOperatorRegistry()
	if err != nil {
		t.Fatalf("KernelOperatorRegistry: %v", err)
	}
	return reg
}

func full(t *testing.T, codeLength int) *registry.OperatorRegistry {
	t.Helper()
	reg, err := registry.FullOperatorRegistry(codeLength)
	if err != nil {
		t.Fatalf("FullOperatorRegistry: %v", err)
	}
	return reg
}

func TestSetSlot_Basic(t *testing.T) {
	state, _ := carrier.NewByteState(1, 2)
	args := SetSlotArgs(0, 1, carrier.NewCode32(1, 1, 5))

	next, record, err := Apply(state, registry.OpSetSlot, args, transactional(t))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	id, status, _ := next.Get(0, 1)
	if id != carrier.NewCode32(1, 1, 5) || status != carrier.StatusProvisional {
		t.Errorf("got (%s, %v)", id, status)
	}
	id0, status0, _ := next.Get(0, 0)
	if !id0.IsZero() || status0 != carrier.StatusHole {
		t.Error("untouched slot must stay default")
	}
	if record.OpCode != registry.OpSetSlot {
		t.Errorf("record.OpCode = %s", record.OpCode)
	}
}

func TestSetSlot_RejectsWrongArgLength(t *testing.T) {
	state, _ := carrier.NewByteState(1, 2)
	_, _, err := Apply(state, registry.OpSetSlot, make([]byte, 8), transactional(t))
	assertKind(t, err, "argument_mismatch")
}

func TestSetSlot_RejectsOutOfBounds(t *testing.T) {
	state, _ := carrier.NewByteState(1, 2)
	args := SetSlotArgs(0, 5, carrier.NewCode32(1, 1, 1))
	_, _, err := Apply(state, registry.OpSetSlot, args, transactional(t))
	assertKind(t, err, "precondition_not_met")
}

func TestUnknownOperator_Rejected(t *testing.T) {
	state, _ := carrier.NewByteState(1, 2)
	_, _, err := Apply(state, carrier.NewCode32(9, 9, 9), nil, transactional(t))
	assertKind(t, err, "unknown_operator")
}

func TestSetSlot_Deterministic(t *testing.T) {
	state, _ := carrier.NewByteState(1, 2)
	args := SetSlotArgs(0, 0, carrier.NewCode32(2, 1, 3))
	reg := transactional(t)

	first, firstRecord, err := Apply(state, registry.OpSetSlot, args, reg)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, record, err := Apply(state, registry.OpSetSlot, args, reg)
		if err != nil {
			t.Fatalf("run %d: Apply: %v", i, err)
		}
		if !got.Equal(first) {
			t.Fatalf("run %d: state differs", i)
		}
		if string(record.ResultIdentity) != string(firstRecord.ResultIdentity) {
			t.Fatalf("run %d: record differs", i)
		}
	}
}

func TestStage_Basic(t *testing.T) {
	state, _ := carrier.NewByteState(2, 4)
	args := StageArgs(1, 0, carrier.NewCode32(2, 1, 0))
	next, record, err := Apply(state, registry.OpStage, args, transactional(t))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	id, status, _ := next.Get(1, 0)
	if id != carrier.NewCode32(2, 1, 0) || status != carrier.StatusProvisional {
		t.Errorf("got (%s, %v)", id, status)
	}
	if record.OpCode != registry.OpStage {
		t.Errorf("record.OpCode = %s", record.OpCode)
	}
}

func TestStage_RejectsOutOfBounds(t *testing.T) {
	state, _ := carrier.NewByteState(2, 4)
	args := StageArgs(0, 10, carrier.NewCode32(2, 1, 0))
	_, _, err := Apply(state, registry.OpStage, args, transactional(t))
	assertKind(t, err, "precondition_not_met")
}

func TestCommit_RequiresStagedSlot(t *testing.T) {
	state, _ := carrier.NewByteState(1, 3)
	_, _, err := Apply(state, registry.OpCommit, CommitArgs(0), transactional(t))
	assertKind(t, err, "effect_contract_violation")
}

func TestCommit_SucceedsAfterStage(t *testing.T) {
	reg := transactional(t)
	state, _ := carrier.NewByteState(1, 3)
	staged, _, err := Apply(state, registry.OpStage, StageArgs(0, 0, carrier.NewCode32(5, 5, 5)), reg)
	if err != nil {
		t.Fatalf("Apply(STAGE): %v", err)
	}
	committed, _, err := Apply(staged, registry.OpCommit, CommitArgs(0), reg)
	if err != nil {
		t.Fatalf("Apply(COMMIT): %v", err)
	}
	id, status, _ := committed.Get(0, committed.MarkerSlot())
	if id != CommitMarker || status != carrier.StatusProvisional {
		t.Errorf("marker slot = (%s, %v)", id, status)
	}
}

func TestCommit_RejectsAlreadyFinalizedMarker(t *testing.T) {
	reg := transactional(t)
	state, _ := carrier.NewByteState(1, 3)
	staged, _, _ := Apply(state, registry.OpStage, StageArgs(0, 0, carrier.NewCode32(5, 5, 5)), reg)
	committed, _, _ := Apply(staged, registry.OpCommit, CommitArgs(0), reg)
	_, _, err := Apply(committed, registry.OpCommit, CommitArgs(0), reg)
	assertKind(t, err, "precondition_not_met")
}

func TestRollback_AllowsEmpty(t *testing.T) {
	state, _ := carrier.NewByteState(1, 3)
	next, _, err := Apply(state, registry.OpRollback, RollbackArgs(0), transactional(t))
	if err != nil {
		t.Fatalf("Apply(ROLLBACK): %v", err)
	}
	id, status, _ := next.Get(0, next.MarkerSlot())
	if id != RollbackMarker || status != carrier.StatusProvisional {
		t.Errorf("marker slot = (%s, %v)", id, status)
	}
}

func TestGuess_WritesKSlots(t *testing.T) {
	reg := full(t, 2)
	state, _ := carrier.NewByteState(2, 3)
	values := []carrier.Code32{carrier.NewCode32(3, 1, 1), carrier.NewCode32(3, 1, 2)}
	next, _, err := Apply(state, registry.OpGuess, GuessArgs(1, 0, values), reg)
	if err != nil {
		t.Fatalf("Apply(GUESS): %v", err)
	}
	for i, v := range values {
		id, status, _ := next.Get(1, i)
		if id != v || status != carrier.StatusProvisional {
			t.Errorf("slot %d = (%s, %v), want (%s, Provisional)", i, id, status, v)
		}
	}
}

func TestGuess_DoesNotTouchTruthLayer(t *testing.T) {
	reg := full(t, 2)
	state, _ := carrier.NewByteState(2, 3)
	state.Set(0, 0, carrier.NewCode32(9, 9, 9), carrier.StatusProvisional)
	values := []carrier.Code32{carrier.NewCode32(3, 1, 1), carrier.NewCode32(3, 1, 2)}
	next, _, err := Apply(state, registry.OpGuess, GuessArgs(1, 0, values), reg)
	if err != nil {
		t.Fatalf("Apply(GUESS): %v", err)
	}
	id, _, _ := next.Get(0, 0)
	if id != carrier.NewCode32(9, 9, 9) {
		t.Error("GUESS must not alter layer 0 (truth)")
	}
}

func TestFeedback_WritesOneSlot(t *testing.T) {
	reg := full(t, 2)
	state, _ := carrier.NewByteState(2, 3)
	next, _, err := Apply(state, registry.OpFeedback, FeedbackArgs(1, 2, carrier.NewCode32(4, 0, 1)), reg)
	if err != nil {
		t.Fatalf("Apply(FEEDBACK): %v", err)
	}
	id, status, _ := next.Get(1, 2)
	if id != carrier.NewCode32(4, 0, 1) || status != carrier.StatusProvisional {
		t.Errorf("got (%s, %v)", id, status)
	}
}

func TestDeclare_WritesOnlySolvedMarker(t *testing.T) {
	reg := full(t, 2)
	state, _ := carrier.NewByteState(2, 3)
	solution := []carrier.Code32{carrier.NewCode32(3, 1, 1), carrier.NewCode32(3, 1, 2)}
	next, _, err := Apply(state, registry.OpDeclare, DeclareArgs(1, 0, solution), reg)
	if err != nil {
		t.Fatalf("Apply(DECLARE): %v", err)
	}
	id, status, _ := next.Get(1, 0)
	if id != registry.SolvedMarker || status != carrier.StatusProvisional {
		t.Errorf("solved_marker slot = (%s, %v)", id, status)
	}
	// Declared values are carried in op_args, never written to state.
	for slot := 1; slot < 3; slot++ {
		unwritten, _ := next.IsUnwritten(1, slot)
		if !unwritten {
			t.Errorf("slot %d must remain unwritten; DECLARE doesn't write the solution", slot)
		}
	}
}

func TestDeclare_RejectsAlreadyDeclared(t *testing.T) {
	reg := full(t, 1)
	state, _ := carrier.NewByteState(2, 2)
	solution := []carrier.Code32{carrier.NewCode32(3, 1, 1)}
	declared, _, _ := Apply(state, registry.OpDeclare, DeclareArgs(1, 0, solution), reg)
	_, _, err := Apply(declared, registry.OpDeclare, DeclareArgs(1, 0, solution), reg)
	assertKind(t, err, "precondition_not_met")
}

func TestApply_OperatorNotImplemented(t *testing.T) {
	// A registry entry with no dispatch handler installed.
	entries := []registry.OperatorEntry{
		{OpID: carrier.NewCode32(7, 7, 7), Name: "GHOST", Category: registry.CategoryControl,
			ArgByteCount: 0, EffectKind: registry.EffectCommitsTransaction, CostModel: "unit", ContractEpoch: "v1"},
	}
	reg, err := registry.NewOperatorRegistry("v1", entries)
	if err != nil {
		t.Fatalf("NewOperatorRegistry: %v", err)
	}
	state, _ := carrier.NewByteState(1, 1)
	_, _, err = Apply(state, carrier.NewCode32(7, 7, 7), nil, reg)
	assertKind(t, err, "operator_not_implemented")
}

func assertKind(t *testing.T, err error, wantKind string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %q, got nil", wantKind)
	}
	af, ok := err.(*ApplyFailure)
	if !ok {
		t.Fatalf("expected *ApplyFailure, got %T: %v", err, err)
	}
	if af.Kind != wantKind {
		t.Fatalf("expected kind %q, got %q (%v)", wantKind, af.Kind, err)
	}
}
