// Copyright 2025 Certen Protocol
//
// SearchGraph: the normative expansion-event audit log plus a derived node
// index. Grounded on original_source/search/src/graph.rs — field names and
// canonical JSON shape kept near-identical to the Rust original's
// `to_json_value`, since this is the artifact Cert-profile verification
// binds against byte-for-byte.

package search

import (
	"encoding/hex"
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
)

// FrontierPopKey is the ordering key recorded at pop time.
type FrontierPopKey struct {
	FCost         int64
	Depth         uint32
	CreationOrder uint64
}

// CandidateOutcomeKind tags what happened when a candidate was processed.
type CandidateOutcomeKind string

const (
	OutcomeApplied             CandidateOutcomeKind = "applied"
	OutcomeDuplicateSuppressed CandidateOutcomeKind = "duplicate_suppressed"
	OutcomeIllegalOperator     CandidateOutcomeKind = "illegal_operator"
	OutcomeApplyFailed         CandidateOutcomeKind = "apply_failed"
	OutcomeSkippedByDepthLimit CandidateOutcomeKind = "skipped_by_depth_limit"
	OutcomeSkippedByPolicy     CandidateOutcomeKind = "skipped_by_policy"
	// OutcomeNotEvaluated is never produced by Run in M1 (every candidate is
	// evaluated), but is part of the tape wire format's closed tag set —
	// reserved for a future scorer-skip policy.
	OutcomeNotEvaluated CandidateOutcomeKind = "not_evaluated"
)

// ApplyFailureKind mirrors the kernel's ApplyFailure variants relevant to
// candidate rejection (precondition/argument/unknown-operator — effect
// contract violations never reach here since worlds only propose legal ops).
type ApplyFailureKind string

const (
	ApplyFailurePreconditionNotMet ApplyFailureKind = "precondition_not_met"
	ApplyFailureArgumentMismatch   ApplyFailureKind = "argument_mismatch"
	ApplyFailureUnknownOperator    ApplyFailureKind = "unknown_operator"
)

// CandidateOutcome is the tagged result of processing one candidate.
type CandidateOutcome struct {
	Kind                 CandidateOutcomeKind
	ToNode               uint64
	ExistingFingerprint  string
	ApplyFailureKind     ApplyFailureKind
}

// CandidateRecord is one candidate's full decision-log entry.
type CandidateRecord struct {
	Index   uint64
	Action  CandidateAction
	Score   CandidateScore
	Outcome CandidateOutcome
}

// DeadEndReason classifies why an expansion produced zero children.
type DeadEndReason string

const (
	DeadEndExhaustive    DeadEndReason = "exhaustive"
	DeadEndBudgetLimited DeadEndReason = "budget_limited"
)

// ExpansionNoteKind tags an expansion-level note.
type ExpansionNoteKind string

const (
	NoteCandidateCapReached ExpansionNoteKind = "candidate_cap_reached"
	NoteFrontierPruned      ExpansionNoteKind = "frontier_pruned"
)

// ExpansionNote is one note attached to an expansion event.
type ExpansionNote struct {
	Kind            ExpansionNoteKind
	Cap             uint64
	PrunedNodeIDs   []uint64
}

// ExpandEvent is a single frontier-pop + candidate-expansion record — the
// normative decision surface search_graph.json serializes.
type ExpandEvent struct {
	ExpansionOrder      uint64
	NodeID              uint64
	StateFingerprint    string
	FrontierPopKey      FrontierPopKey
	Candidates          []CandidateRecord
	CandidatesTruncated bool
	DeadEndReason       *DeadEndReason
	Notes               []ExpansionNote
}

// TerminationReasonKind tags why the search loop stopped.
type TerminationReasonKind string

const (
	TerminationGoalReached             TerminationReasonKind = "goal_reached"
	TerminationFrontierExhausted       TerminationReasonKind = "frontier_exhausted"
	TerminationExpansionBudgetExceeded TerminationReasonKind = "expansion_budget_exceeded"
	TerminationDepthBudgetExceeded     TerminationReasonKind = "depth_budget_exceeded"
	TerminationWorldContractViolation  TerminationReasonKind = "world_contract_violation"
	TerminationScorerContractViolation TerminationReasonKind = "scorer_contract_violation"
	TerminationInternalPanic           TerminationReasonKind = "internal_panic"
	TerminationFrontierInvariant       TerminationReasonKind = "frontier_invariant_violation"
)

// PanicStage identifies which callback panicked.
type PanicStage string

const (
	PanicStageEnumerateCandidates PanicStage = "enumerate_candidates"
	PanicStageScoreCandidates     PanicStage = "score_candidates"
	PanicStageIsGoalRoot          PanicStage = "is_goal_root"
	PanicStageIsGoalExpansion     PanicStage = "is_goal_expansion"
)

// FrontierInvariantStage identifies which frontier invariant check failed.
// M1's loop structurally cannot reach this path (Pop is always guarded by
// IsEmpty), but the tape wire format reserves a tag for it so the format
// stays forward-compatible with future frontier implementations.
type FrontierInvariantStage string

const (
	FrontierInvariantPopFromNonEmpty FrontierInvariantStage = "pop_from_non_empty"
)

// TerminationReason is the tagged reason the search loop stopped.
type TerminationReason struct {
	Kind                    TerminationReasonKind
	NodeID                  uint64
	Expected                uint64
	Actual                  uint64
	PanicStage              PanicStage
	FrontierInvariantStage  FrontierInvariantStage
}

// NodeSummary is the derived, node_id-sorted index used for path
// reconstruction and quick lookups.
type NodeSummary struct {
	NodeID           uint64
	ParentID         *uint64
	StateFingerprint string
	Depth            uint32
	FCost            int64
	IsGoal           bool
	DeadEndReason    *DeadEndReason
	ExpansionOrder   *uint64
}

// Metadata is the graph's aggregate summary with snapshot bindings.
type Metadata struct {
	WorldID                    string
	SchemaDescriptor           string
	RegistryDigest             string
	PolicySnapshotDigest       string
	SearchPolicyDigest         string
	ScorerDigest               string // empty when the uniform scorer was used
	RootStateFingerprint       string
	// OperatorSetDigest, RootIdentityDigest, and RootEvidenceDigest are
	// optional hex-form bindings checked by the Cert verifier profile
	// (spec.md §4.6 steps 10, 12, 13e); empty when the producer's world
	// declares no identity/evidence-plane obligations.
	OperatorSetDigest          string
	RootIdentityDigest         string
	RootEvidenceDigest         string
	TotalExpansions            uint64
	TotalCandidatesGenerated   uint64
	TotalDuplicatesSuppressed  uint64
	TotalDeadEndsExhaustive    uint64
	TotalDeadEndsBudgetLimited uint64
	TerminationReason          TerminationReason
	FrontierHighWater          uint64
	DedupKey                   DedupKey
	PruneVisitedPolicy         PruneVisitedPolicy
}

// Graph is the complete search audit trail.
type Graph struct {
	Expansions    []ExpandEvent
	NodeSummaries []NodeSummary
	Metadata      Metadata
}

// ToCanonicalJSONBytes renders the graph as canonical JSON — the exact
// bytes search_graph.json holds in the evidence bundle.
func (g *Graph) ToCanonicalJSONBytes() ([]byte, error) {
	return codec.CanonicalJSONBytes(g.toJSONValue())
}

func (g *Graph) toJSONValue() map[string]any {
	expansions := make([]any, len(g.Expansions))
	for i, e := range g.Expansions {
		expansions[i] = expandEventToJSON(e)
	}
	summaries := make([]any, len(g.NodeSummaries))
	for i, n := range g.NodeSummaries {
		summaries[i] = nodeSummaryToJSON(n)
	}
	return map[string]any{
		"expansions":     expansions,
		"metadata":       metadataToJSON(g.Metadata),
		"node_summaries": summaries,
	}
}

func expandEventToJSON(e ExpandEvent) map[string]any {
	candidates := make([]any, len(e.Candidates))
	for i, c := range e.Candidates {
		candidates[i] = candidateRecordToJSON(c)
	}
	notes := make([]any, len(e.Notes))
	for i, n := range e.Notes {
		notes[i] = noteToJSON(n)
	}
	var deadEnd any
	if e.DeadEndReason != nil {
		deadEnd = string(*e.DeadEndReason)
	}
	return map[string]any{
		"candidates":           candidates,
		"candidates_truncated": e.CandidatesTruncated,
		"expansion_order":      e.ExpansionOrder,
		"frontier_pop_key": map[string]any{
			"creation_order": e.FrontierPopKey.CreationOrder,
			"depth":          e.FrontierPopKey.Depth,
			"f_cost":         e.FrontierPopKey.FCost,
		},
		"node_id":           e.NodeID,
		"notes":              notes,
		"state_fingerprint":  e.StateFingerprint,
		"dead_end_reason":    deadEnd,
	}
}

func candidateRecordToJSON(r CandidateRecord) map[string]any {
	return map[string]any{
		"index": r.Index,
		"action": map[string]any{
			"canonical_hash": r.Action.CanonicalHash,
			"op_args_hex":    hex.EncodeToString(r.Action.OpArgs),
			"op_code_hex":    opCodeHex(r.Action.OpCode),
		},
		"outcome": outcomeToJSON(r.Outcome),
		"score": map[string]any{
			"bonus":  r.Score.Bonus,
			"source": scoreSourceToJSON(r.Score.Source),
		},
	}
}

func outcomeToJSON(o CandidateOutcome) map[string]any {
	switch o.Kind {
	case OutcomeApplied:
		return map[string]any{"type": string(o.Kind), "to_node": o.ToNode}
	case OutcomeDuplicateSuppressed:
		return map[string]any{"type": string(o.Kind), "existing_fingerprint": o.ExistingFingerprint}
	case OutcomeApplyFailed:
		return map[string]any{"type": string(o.Kind), "kind": string(o.ApplyFailureKind)}
	default:
		return map[string]any{"type": string(o.Kind)}
	}
}

func scoreSourceToJSON(s ScoreSource) any {
	switch s.Kind {
	case ScoreSourceModelDigest:
		return map[string]any{"model_digest": s.ModelDigest}
	default:
		return string(s.Kind)
	}
}

func noteToJSON(n ExpansionNote) map[string]any {
	switch n.Kind {
	case NoteCandidateCapReached:
		return map[string]any{"type": string(n.Kind), "cap": n.Cap}
	case NoteFrontierPruned:
		ids := make([]any, len(n.PrunedNodeIDs))
		for i, id := range n.PrunedNodeIDs {
			ids[i] = id
		}
		return map[string]any{"type": string(n.Kind), "pruned_node_ids": ids}
	default:
		return map[string]any{"type": string(n.Kind)}
	}
}

func nodeSummaryToJSON(n NodeSummary) map[string]any {
	var deadEnd any
	if n.DeadEndReason != nil {
		deadEnd = string(*n.DeadEndReason)
	}
	var parentID any
	if n.ParentID != nil {
		parentID = *n.ParentID
	}
	var expansionOrder any
	if n.ExpansionOrder != nil {
		expansionOrder = *n.ExpansionOrder
	}
	return map[string]any{
		"dead_end_reason": deadEnd,
		"depth":           n.Depth,
		"expansion_order": expansionOrder,
		"f_cost":          n.FCost,
		"is_goal":         n.IsGoal,
		"node_id":         n.NodeID,
		"parent_id":       parentID,
		"state_fingerprint": n.StateFingerprint,
	}
}

func metadataToJSON(m Metadata) map[string]any {
	out := map[string]any{
		"dedup_key":                      string(m.DedupKey),
		"frontier_high_water":            m.FrontierHighWater,
		"policy_snapshot_digest":         m.PolicySnapshotDigest,
		"prune_visited_policy":           string(m.PruneVisitedPolicy),
		"registry_digest":                m.RegistryDigest,
		"root_state_fingerprint":         m.RootStateFingerprint,
		"schema_descriptor":              m.SchemaDescriptor,
		"search_policy_digest":           m.SearchPolicyDigest,
		"termination_reason":             terminationReasonToJSON(m.TerminationReason),
		"total_candidates_generated":     m.TotalCandidatesGenerated,
		"total_dead_ends_budget_limited": m.TotalDeadEndsBudgetLimited,
		"total_dead_ends_exhaustive":     m.TotalDeadEndsExhaustive,
		"total_duplicates_suppressed":    m.TotalDuplicatesSuppressed,
		"total_expansions":               m.TotalExpansions,
		"world_id":                       m.WorldID,
	}
	if m.ScorerDigest != "" {
		out["scorer_digest"] = m.ScorerDigest
	}
	if m.OperatorSetDigest != "" {
		out["operator_set_digest"] = m.OperatorSetDigest
	}
	if m.RootIdentityDigest != "" {
		out["root_identity_digest"] = m.RootIdentityDigest
	}
	if m.RootEvidenceDigest != "" {
		out["root_evidence_digest"] = m.RootEvidenceDigest
	}
	return out
}

func terminationReasonToJSON(r TerminationReason) map[string]any {
	switch r.Kind {
	case TerminationGoalReached:
		return map[string]any{"type": string(r.Kind), "node_id": r.NodeID}
	case TerminationScorerContractViolation:
		return map[string]any{"type": string(r.Kind), "expected": r.Expected, "actual": r.Actual}
	case TerminationInternalPanic:
		return map[string]any{"type": string(r.Kind), "stage": string(r.PanicStage)}
	case TerminationFrontierInvariant:
		return map[string]any{"type": string(r.Kind), "stage": string(r.FrontierInvariantStage)}
	default:
		return map[string]any{"type": string(r.Kind)}
	}
}

// SortNodeSummaries sorts summaries by node_id ascending (spec.md §4.4's
// derived-index ordering invariant).
func SortNodeSummaries(summaries []NodeSummary) {
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].NodeID < summaries[j].NodeID })
}

func opCodeHex(c carrier.Code32) string {
	b := c.Bytes()
	return hex.EncodeToString(b[:])
}
