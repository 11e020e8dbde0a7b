// Copyright 2025 Certen Protocol

package search

import "testing"

func TestSortCandidates_OrdersByCanonicalHashAscending(t *testing.T) {
	candidates := []CandidateAction{
		{CanonicalHash: "ccc"},
		{CanonicalHash: "aaa"},
		{CanonicalHash: "bbb"},
	}
	SortCandidates(candidates)
	want := []string{"aaa", "bbb", "ccc"}
	for i, c := range candidates {
		if c.CanonicalHash != want[i] {
			t.Errorf("candidates[%d] = %s, want %s", i, c.CanonicalHash, want[i])
		}
	}
}

func TestSortCandidates_EmptyAndSingleton(t *testing.T) {
	var empty []CandidateAction
	SortCandidates(empty) // must not panic

	one := []CandidateAction{{CanonicalHash: "x"}}
	SortCandidates(one)
	if one[0].CanonicalHash != "x" {
		t.Errorf("singleton must be unchanged")
	}
}

func TestSearchNode_FCostIsGPlusH(t *testing.T) {
	n := SearchNode{GCost: 3, HCost: 4}
	if n.FCost() != 7 {
		t.Errorf("FCost = %d, want 7", n.FCost())
	}
}

func TestSearchNode_FCostDegeneratesToGCostWhenHCostZero(t *testing.T) {
	n := SearchNode{GCost: 5, HCost: 0}
	if n.FCost() != 5 {
		t.Errorf("FCost = %d, want 5", n.FCost())
	}
}
