// Copyright 2025 Certen Protocol
//
// World — the external collaborator interface a puzzle/problem domain
// implements to be searchable. Grounded on
// original_source/harness/src/contract.rs usage from search.rs/graph.rs
// (WorldHarnessV1/SearchWorldV1 — file absent from the pack, inferred from
// call sites) and spec.md §6's abstract "world" declaration.

package search

import "github.com/certen/sterling/pkg/carrier"

// World enumerates candidate moves from a state and tests goal-reachedness.
// Implementations must be deterministic: given the same state and registry,
// EnumerateCandidates must return the same candidate set every call.
type World interface {
	// EnumerateCandidates proposes zero or more operator invocations from
	// state. The engine sorts the result by CanonicalHash; implementations
	// need not pre-sort.
	EnumerateCandidates(state *carrier.ByteState, registry OperatorContains) []CandidateAction

	// IsGoal reports whether state satisfies the world's goal condition.
	IsGoal(state *carrier.ByteState) bool
}

// OperatorContains is the minimal registry surface the search engine and
// worlds need: legality checks by op code (satisfied by
// *registry.OperatorRegistry).
type OperatorContains interface {
	Contains(opCode carrier.Code32) bool
}
