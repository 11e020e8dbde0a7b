// Copyright 2025 Certen Protocol
//
// SearchNode and CandidateAction — the frontier's element type and the
// world-proposed move it was created from.
// Grounded on original_source/search/src/node.rs (inferred from usage in
// search.rs and graph.rs — the file itself is absent from the retrieval
// pack, but every field is directly observable at each construction site).

package search

import (
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
)

// CandidateAction is a single proposed operator invocation a world offers
// during expansion.
type CandidateAction struct {
	OpCode        carrier.Code32
	OpArgs        []byte
	CanonicalHash string // hex digest used for deterministic sort and dedup
}

// SortCandidates sorts candidates by canonical_hash ascending, in place,
// per spec.md §4.4 step "sort candidates by canonical_hash (deterministic
// enumeration)".
func SortCandidates(candidates []CandidateAction) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CanonicalHash < candidates[j].CanonicalHash
	})
}

// SearchNode is one frontier/graph element: a concrete state plus the path
// metadata needed for ordering, dedup, and path reconstruction.
type SearchNode struct {
	NodeID           uint64
	ParentID         *uint64
	State            *carrier.ByteState
	StateFingerprint codec.ContentHash
	Depth            uint32
	GCost            int64
	HCost            int64
	CreationOrder    uint64
	ProducingAction  *CandidateAction
}

// FCost is g_cost + h_cost, the best-first ordering cost. M1 never sets a
// heuristic (h_cost is always 0), so f_cost degenerates to path length.
func (n SearchNode) FCost() int64 { return n.GCost + n.HCost }
