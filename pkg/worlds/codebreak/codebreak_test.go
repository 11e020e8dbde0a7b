// Copyright 2025 Certen Protocol

package codebreak

import (
	"testing"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/search"
)

func code(n uint16) carrier.Code32 { return carrier.NewCode32(3, 1, n) }

func TestWorld_Dimensions(t *testing.T) {
	w := New("t", []carrier.Code32{code(1), code(2)}, []carrier.Code32{code(1), code(2), code(3)})
	layerCount, slotCount, argSlotCount, obligations := w.Dimensions()
	if layerCount != 3 {
		t.Errorf("layerCount = %d, want 3", layerCount)
	}
	if slotCount != 3 {
		t.Errorf("slotCount = %d, want 3 (2 secret slots + marker)", slotCount)
	}
	if argSlotCount != 2 {
		t.Errorf("argSlotCount = %d, want 2", argSlotCount)
	}
	if len(obligations) != 1 || obligations[0] != "tool_transcript_equivalence_v1" {
		t.Errorf("evidenceObligations = %v, want [tool_transcript_equivalence_v1]", obligations)
	}
}

func TestWorld_IsGoal_FalseBeforeDeclare(t *testing.T) {
	w := New("t", []carrier.Code32{code(1), code(2)}, []carrier.Code32{code(1), code(2)})
	state, err := carrier.NewByteState(3, 3)
	if err != nil {
		t.Fatalf("NewByteState: %v", err)
	}
	if w.IsGoal(state) {
		t.Fatal("IsGoal: empty state should not be a goal")
	}
}

func TestWorld_EnumerateCandidates_StartsWithGuesses(t *testing.T) {
	alphabet := []carrier.Code32{code(1), code(2)}
	w := New("t", []carrier.Code32{code(1), code(2)}, alphabet)
	state, err := carrier.NewByteState(3, 3)
	if err != nil {
		t.Fatalf("NewByteState: %v", err)
	}
	reg, err := w.OperatorRegistry()
	if err != nil {
		t.Fatalf("OperatorRegistry: %v", err)
	}

	candidates := w.EnumerateCandidates(state, reg)
	wantCount := len(alphabet) * len(alphabet) // alphabet^codeLength combinations
	if len(candidates) != wantCount {
		t.Fatalf("len(candidates) = %d, want %d", len(candidates), wantCount)
	}
}

func TestWorld_SolvesViaSearchRun(t *testing.T) {
	secret := []carrier.Code32{code(1), code(2)}
	alphabet := []carrier.Code32{code(1), code(2)}
	w := New("search-run-test", secret, alphabet)

	rootState, err := carrier.NewByteState(3, w.codeLength()+1)
	if err != nil {
		t.Fatalf("NewByteState: %v", err)
	}
	reg, err := w.OperatorRegistry()
	if err != nil {
		t.Fatalf("OperatorRegistry: %v", err)
	}

	policy := search.Policy{
		DedupKey:             search.DedupIdentityOnly,
		PruneVisitedPolicy:   search.PruneKeepVisited,
		MaxCandidatesPerNode: 32,
		MaxDepth:             32,
		MaxExpansions:        5000,
		MaxFrontierSize:      5000,
	}
	bindings := search.MetadataBindings{WorldID: w.WorldID()}

	result, err := search.Run(rootState, w, reg, policy, search.UniformScorer{}, bindings, nil)
	if err != nil {
		t.Fatalf("search.Run: %v", err)
	}
	if result.GoalNode == nil {
		t.Fatal("search.Run: expected a goal node, got none")
	}
}
