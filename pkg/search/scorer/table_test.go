// Copyright 2025 Certen Protocol

package scorer

import (
	"testing"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/search"
)

func TestTable_LookupKnownAndMissing(t *testing.T) {
	tbl := NewTable(map[string]int64{"aaa": 5, "bbb": -3})
	if got := tbl.Lookup("aaa"); got != 5 {
		t.Errorf("Lookup(aaa) = %d, want 5", got)
	}
	if got := tbl.Lookup("zzz"); got != 0 {
		t.Errorf("Lookup(zzz) = %d, want 0 (missing entries score 0)", got)
	}
}

func TestTable_CanonicalBytesDeterministic(t *testing.T) {
	tbl := NewTable(map[string]int64{"ccc": 1, "aaa": 2, "bbb": 3})
	b1, err := tbl.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	b2, err := tbl.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}
	if string(b1) != string(b2) {
		t.Error("CanonicalBytes must be deterministic across calls")
	}
}

func TestTable_DigestStableForSameEntries(t *testing.T) {
	a := NewTable(map[string]int64{"x": 1, "y": 2})
	b := NewTable(map[string]int64{"y": 2, "x": 1}) // different insertion order
	da, err := a.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	db, err := b.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !da.Equal(db) {
		t.Error("digest must not depend on map iteration/insertion order")
	}
}

func TestTable_DigestChangesWithBonus(t *testing.T) {
	a := NewTable(map[string]int64{"x": 1})
	b := NewTable(map[string]int64{"x": 2})
	da, _ := a.Digest()
	db, _ := b.Digest()
	if da.Equal(db) {
		t.Error("digest must change when a bonus value changes")
	}
}

func TestNewTableScorer_PrecomputesDigest(t *testing.T) {
	tbl := NewTable(map[string]int64{"aaa": 1})
	want, err := tbl.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	ts, err := NewTableScorer(tbl)
	if err != nil {
		t.Fatalf("NewTableScorer: %v", err)
	}
	if ts.Digest() != want.HexDigest() {
		t.Errorf("Digest() = %s, want %s", ts.Digest(), want.HexDigest())
	}
}

func TestTableScorer_ScoreCandidatesTagsModelDigest(t *testing.T) {
	tbl := NewTable(map[string]int64{"aaa": 7})
	ts, err := NewTableScorer(tbl)
	if err != nil {
		t.Fatalf("NewTableScorer: %v", err)
	}
	candidates := []search.CandidateAction{
		{OpCode: carrier.NewCode32(1, 1, 1), CanonicalHash: "aaa"},
		{OpCode: carrier.NewCode32(1, 1, 2), CanonicalHash: "missing"},
	}
	scores := ts.ScoreCandidates(search.SearchNode{}, candidates)
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0].Bonus != 7 {
		t.Errorf("scores[0].Bonus = %d, want 7", scores[0].Bonus)
	}
	if scores[0].Source.Kind != search.ScoreSourceModelDigest {
		t.Errorf("scores[0].Source.Kind = %s", scores[0].Source.Kind)
	}
	if scores[0].Source.ModelDigest != ts.Digest() {
		t.Error("score provenance must carry the table's own digest")
	}
	if scores[1].Bonus != 0 {
		t.Errorf("scores[1].Bonus = %d, want 0 for missing entry", scores[1].Bonus)
	}
}

func TestTableScorer_PreservesCandidateSetAndOrder(t *testing.T) {
	// Advisory-only: scoring must never add, remove, or reorder candidates
	// (spec.md §4.4) -- only the caller re-sorts by (bonus desc, hash asc).
	tbl := NewTable(map[string]int64{"b": 1, "a": 2})
	ts, err := NewTableScorer(tbl)
	if err != nil {
		t.Fatalf("NewTableScorer: %v", err)
	}
	candidates := []search.CandidateAction{
		{CanonicalHash: "b"},
		{CanonicalHash: "a"},
	}
	scores := ts.ScoreCandidates(search.SearchNode{}, candidates)
	if len(scores) != len(candidates) {
		t.Fatalf("len(scores) = %d, want %d", len(scores), len(candidates))
	}
	if candidates[0].CanonicalHash != "b" || candidates[1].CanonicalHash != "a" {
		t.Error("ScoreCandidates must not mutate the input candidate order")
	}
}
