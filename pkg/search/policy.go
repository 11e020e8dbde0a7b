// Copyright 2025 Certen Protocol
//
// Search policy: budgets and dedup/prune modes validated at entry.
// Grounded on original_source/search/src/search.rs (policy.validate_m1()) and
// original_source/search/src/graph.rs's DedupKeyV1/PruneVisitedPolicyV1.

package search

// DedupKey selects how child states are deduplicated.
type DedupKey string

const (
	// DedupIdentityOnly dedups on the identity plane's fingerprint only. The
	// only mode M1 accepts.
	DedupIdentityOnly DedupKey = "identity_only"
	// DedupFullState dedups on identity+status. Declared but rejected by
	// Policy.Validate in this milestone (spec.md §4.4, §9).
	DedupFullState DedupKey = "full_state"
)

// PruneVisitedPolicy names how dead-end nodes are treated in the visited
// set. Both values pass Validate and are recorded in the graph metadata;
// Run keeps every visited fingerprint under either value.
type PruneVisitedPolicy string

const (
	PruneKeepVisited    PruneVisitedPolicy = "keep_visited"
	PruneReleaseVisited PruneVisitedPolicy = "release_visited"
)

// Policy is the search engine's budget and mode configuration, validated
// once at Run entry.
type Policy struct {
	DedupKey             DedupKey
	PruneVisitedPolicy   PruneVisitedPolicy
	MaxCandidatesPerNode uint64
	MaxDepth             uint32
	MaxExpansions        uint64
	MaxFrontierSize      uint64
}

// PolicyError reports an unsupported policy configuration.
type PolicyError struct {
	Field string
	Value string
}

func (e *PolicyError) Error() string {
	return "search: unsupported policy mode: " + e.Field + "=" + e.Value
}

// Validate enforces the M1 policy constraints. Only DedupIdentityOnly is
// accepted; any other DedupKey value returns a PolicyError (spec.md §9: the
// only Err-returning path in the search entry point).
func (p Policy) Validate() error {
	switch p.DedupKey {
	case DedupIdentityOnly:
	case DedupFullState:
		return &PolicyError{Field: "dedup_key", Value: string(p.DedupKey)}
	default:
		return &PolicyError{Field: "dedup_key", Value: string(p.DedupKey)}
	}
	switch p.PruneVisitedPolicy {
	case PruneKeepVisited, PruneReleaseVisited:
	default:
		return &PolicyError{Field: "prune_visited_policy", Value: string(p.PruneVisitedPolicy)}
	}
	return nil
}
