// Copyright 2025 Certen Protocol

package registry

import (
	"strings"
	"testing"

	"github.com/certen/sterling/pkg/carrier"
)

func TestKernelOperatorRegistry_FourEntries(t *testing.T) {
	reg, err := KernelOperatorRegistry()
	if err != nil {
		t.Fatalf("KernelOperatorRegistry: %v", err)
	}
	if reg.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", reg.Len())
	}
	entry, ok := reg.Get(OpSetSlot)
	if !ok {
		t.Fatal("SET_SLOT not found")
	}
	if entry.EffectKind != EffectWritesOneSlotFromArgs {
		t.Errorf("SET_SLOT effect kind = %s", entry.EffectKind)
	}
	if entry.ArgByteCount != 12 {
		t.Errorf("SET_SLOT arg_byte_count = %d, want 12", entry.ArgByteCount)
	}
}

func TestNewOperatorRegistry_RejectsDuplicates(t *testing.T) {
	dup := carrier.NewCode32(9, 9, 9)
	entries := []OperatorEntry{
		{OpID: dup, Name: "A", Category: CategoryControl, ArgByteCount: 4, EffectKind: EffectCommitsTransaction, CostModel: "unit", ContractEpoch: "v1"},
		{OpID: dup, Name: "B", Category: CategoryControl, ArgByteCount: 4, EffectKind: EffectCommitsTransaction, CostModel: "unit", ContractEpoch: "v1"},
	}
	if _, err := NewOperatorRegistry("v1", entries); err == nil {
		t.Fatal("expected duplicate op_id rejection")
	}
}

func TestNewOperatorRegistry_RejectsUnknownEffectKind(t *testing.T) {
	entries := []OperatorEntry{
		{OpID: carrier.NewCode32(9, 9, 9), Name: "BAD", Category: CategoryControl, ArgByteCount: 4, EffectKind: "not_a_kind", CostModel: "unit", ContractEpoch: "v1"},
	}
	if _, err := NewOperatorRegistry("v1", entries); err == nil {
		t.Fatal("expected invalid effect kind rejection")
	}
}

func TestOperatorRegistry_CanonicalBytes_SortedByCode32(t *testing.T) {
	reg, err := KernelOperatorRegistry()
	if err != nil {
		t.Fatalf("KernelOperatorRegistry: %v", err)
	}
	b, err := reg.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	s := string(b)
	// SET_SLOT (1,1,1) must appear before ROLLBACK (1,1,4) in canonical order.
	if strings.Index(s, `"SET_SLOT"`) > strings.Index(s, `"ROLLBACK"`) {
		t.Error("expected SET_SLOT to sort before ROLLBACK")
	}
	if strings.Contains(s, " ") {
		t.Error("canonical bytes must contain no insignificant whitespace")
	}
}

func TestOperatorRegistry_CanonicalBytes_Deterministic(t *testing.T) {
	reg, err := KernelOperatorRegistry()
	if err != nil {
		t.Fatalf("KernelOperatorRegistry: %v", err)
	}
	first, err := reg.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := reg.CanonicalBytes()
		if err != nil {
			t.Fatalf("run %d: CanonicalBytes: %v", i, err)
		}
		if string(got) != string(first) {
			t.Fatalf("run %d: canonical bytes changed", i)
		}
	}
}

func TestEpistemicOperatorRegistry_ArgByteCountScalesWithCodeLength(t *testing.T) {
	reg, err := EpistemicOperatorRegistry(4)
	if err != nil {
		t.Fatalf("EpistemicOperatorRegistry: %v", err)
	}
	guess, ok := reg.Get(OpGuess)
	if !ok {
		t.Fatal("GUESS not found")
	}
	if guess.ArgByteCount != 24 {
		t.Errorf("GUESS arg_byte_count = %d, want 24 (8 header + 4*4 values)", guess.ArgByteCount)
	}
	feedback, ok := reg.Get(OpFeedback)
	if !ok {
		t.Fatal("FEEDBACK not found")
	}
	if feedback.ArgByteCount != 12 {
		t.Errorf("FEEDBACK arg_byte_count = %d, want 12", feedback.ArgByteCount)
	}
}

func TestEpistemicOperatorRegistry_RejectsNonPositiveCodeLength(t *testing.T) {
	if _, err := EpistemicOperatorRegistry(0); err == nil {
		t.Error("expected error for codeLength=0")
	}
}

func TestFullOperatorRegistry_MergesBothSets(t *testing.T) {
	reg, err := FullOperatorRegistry(3)
	if err != nil {
		t.Fatalf("FullOperatorRegistry: %v", err)
	}
	if reg.Len() != 7 {
		t.Fatalf("expected 7 entries, got %d", reg.Len())
	}
	if !reg.Contains(OpSetSlot) || !reg.Contains(OpDeclare) {
		t.Error("expected both transactional and epistemic operators present")
	}
}

func TestOperatorRegistry_Digest_DomainSeparated(t *testing.T) {
	reg, err := KernelOperatorRegistry()
	if err != nil {
		t.Fatalf("KernelOperatorRegistry: %v", err)
	}
	d1, err := reg.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := reg.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !d1.Equal(d2) {
		t.Error("digest must be deterministic across calls")
	}
}
