// Copyright 2025 Certen Protocol

package search

import (
	"testing"

	"github.com/certen/sterling/pkg/codec"
)

// newTestNode builds a SearchNode with a fingerprint derived from id, so
// distinct ids are always treated as distinct states by the frontier's
// visited-dedup set.
func newTestNode(t *testing.T, id uint64, gcost int64, depth uint32, creationOrder uint64) SearchNode {
	t.Helper()
	fp := codec.Hash(codec.DomainSearchNode, []byte{byte(id)})
	return SearchNode{
		NodeID: id, GCost: gcost, Depth: depth, CreationOrder: creationOrder,
		StateFingerprint: fp,
	}
}

func TestFrontier_PopOrdersByFCostThenDepthThenCreation(t *testing.T) {
	f := NewBestFirstFrontier()
	a := newTestNode(t, 1, 5, 0, 0)
	b := newTestNode(t, 2, 3, 0, 1)
	c := newTestNode(t, 3, 3, 1, 2)
	f.Push(a)
	f.Push(b)
	f.Push(c)

	first, ok := f.Pop()
	if !ok || first.NodeID != 2 {
		t.Fatalf("expected node 2 first (lowest f_cost), got %+v", first)
	}
	second, ok := f.Pop()
	if !ok || second.NodeID != 3 {
		t.Fatalf("expected node 3 second, got %+v", second)
	}
	third, ok := f.Pop()
	if !ok || third.NodeID != 1 {
		t.Fatalf("expected node 1 third, got %+v", third)
	}
	if !f.IsEmpty() {
		t.Error("frontier should be empty after popping all entries")
	}
}

func TestFrontier_PopOnEmptyReturnsFalse(t *testing.T) {
	f := NewBestFirstFrontier()
	_, ok := f.Pop()
	if ok {
		t.Error("Pop on empty frontier must return ok=false")
	}
}

func TestFrontier_IsVisitedTracksPushedFingerprints(t *testing.T) {
	f := NewBestFirstFrontier()
	n := newTestNode(t, 1, 0, 0, 0)
	if f.IsVisited(n.StateFingerprint.HexDigest()) {
		t.Error("must not be visited before Push")
	}
	f.Push(n)
	if !f.IsVisited(n.StateFingerprint.HexDigest()) {
		t.Error("must be visited after Push")
	}
}

func TestFrontier_HighWaterTracksPeakSize(t *testing.T) {
	f := NewBestFirstFrontier()
	f.Push(newTestNode(t, 1, 0, 0, 0))
	f.Push(newTestNode(t, 2, 0, 0, 1))
	if f.HighWater() != 2 {
		t.Errorf("HighWater = %d, want 2", f.HighWater())
	}
	f.Pop()
	if f.HighWater() != 2 {
		t.Error("HighWater must not decrease after Pop")
	}
}

func TestFrontier_PruneToKeepsBestAndReturnsPrunedIDs(t *testing.T) {
	f := NewBestFirstFrontier()
	f.Push(newTestNode(t, 1, 10, 0, 0))
	f.Push(newTestNode(t, 2, 1, 0, 1))
	f.Push(newTestNode(t, 3, 5, 0, 2))

	pruned := f.PruneTo(1)
	if len(pruned) != 2 {
		t.Fatalf("expected 2 pruned ids, got %v", pruned)
	}
	kept, ok := f.Pop()
	if !ok || kept.NodeID != 2 {
		t.Errorf("expected node 2 (lowest f_cost) to survive pruning, got %+v", kept)
	}
}

func TestFrontier_PruneToNoOpWhenUnderLimit(t *testing.T) {
	f := NewBestFirstFrontier()
	f.Push(newTestNode(t, 1, 0, 0, 0))
	pruned := f.PruneTo(5)
	if pruned != nil {
		t.Errorf("expected nil (no pruning), got %v", pruned)
	}
}
