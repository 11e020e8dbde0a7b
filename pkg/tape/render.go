// Copyright 2025 Certen Protocol
//
// ToGraph renders a parsed tape back into a search.Graph, byte-reproducing
// the same canonical JSON search_graph.json would hold for the same run.
// This is the Cert verifier profile's tape<->graph equivalence check
// (spec.md §4.6 step 19): since both artifacts are produced from the same
// search.Sink callback sequence, a correctly-written tape and its sibling
// graph must render to identical canonical bytes.
//
// Header schema: the header JSON passed to NewTapeWriter is opaque to the
// writer itself, but the producer populates it with the same snapshot
// bindings search.Metadata carries, under the same JSON keys metadataToJSON
// emits (world_id, schema_descriptor, registry_digest,
// policy_snapshot_digest, search_policy_digest, root_state_fingerprint,
// dedup_key, prune_visited_policy, plus the optional scorer_digest,
// operator_set_digest, root_identity_digest, root_evidence_digest). The
// aggregate totals, termination reason, and frontier high water mark are
// never in the header — they are derived from the record stream itself, the
// same way a live search.Graph derives them from Sink callbacks.
package tape

import (
	"encoding/hex"
	"fmt"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/search"
)

// ToGraph reconstructs a search.Graph from the tape's parsed records and
// header. Returns an error if the header is missing a required binding
// field or has the wrong JSON type for it.
func (t *SearchTape) ToGraph() (*search.Graph, error) {
	meta, err := t.metadataFromHeader()
	if err != nil {
		return nil, err
	}

	expansionOrderByNode := make(map[uint64]uint64, len(t.Records))
	deadEndByNode := make(map[uint64]*search.DeadEndReason, len(t.Records))
	var expansions []search.ExpandEvent
	var summaries []search.NodeSummary
	goalNodeID := uint64(0)
	haveGoal := false

	for _, r := range t.Records {
		switch r.Type {
		case RecordTypeNodeCreation:
			nc := r.NodeCreation
			summaries = append(summaries, search.NodeSummary{
				NodeID:           nc.NodeID,
				ParentID:         nc.ParentID,
				StateFingerprint: hex.EncodeToString(nc.StateFingerprint[:]),
				Depth:            nc.Depth,
				FCost:            nc.FCost,
			})
		case RecordTypeExpansion:
			ex := r.Expansion
			expansionOrderByNode[ex.NodeID] = ex.ExpansionOrder
			deadEndByNode[ex.NodeID] = ex.DeadEndReason
			event, err := renderExpandEvent(ex)
			if err != nil {
				return nil, err
			}
			expansions = append(expansions, event)
		case RecordTypeTermination:
			tm := r.Termination
			meta.TerminationReason = tm.Reason
			meta.FrontierHighWater = tm.FrontierHighWater
			if tm.Reason.Kind == search.TerminationGoalReached {
				goalNodeID = tm.Reason.NodeID
				haveGoal = true
			}
		}
	}

	for i := range summaries {
		id := summaries[i].NodeID
		if order, ok := expansionOrderByNode[id]; ok {
			o := order
			summaries[i].ExpansionOrder = &o
		}
		if reason, ok := deadEndByNode[id]; ok {
			summaries[i].DeadEndReason = reason
		}
		summaries[i].IsGoal = haveGoal && id == goalNodeID
	}

	var totalCandidates, totalDuplicates, totalExhaustive, totalBudgetLimited uint64
	for _, e := range expansions {
		totalCandidates += uint64(len(e.Candidates))
		for _, c := range e.Candidates {
			if c.Outcome.Kind == search.OutcomeDuplicateSuppressed {
				totalDuplicates++
			}
		}
		if e.DeadEndReason != nil {
			switch *e.DeadEndReason {
			case search.DeadEndExhaustive:
				totalExhaustive++
			case search.DeadEndBudgetLimited:
				totalBudgetLimited++
			}
		}
	}
	meta.TotalExpansions = uint64(len(expansions))
	meta.TotalCandidatesGenerated = totalCandidates
	meta.TotalDuplicatesSuppressed = totalDuplicates
	meta.TotalDeadEndsExhaustive = totalExhaustive
	meta.TotalDeadEndsBudgetLimited = totalBudgetLimited

	search.SortNodeSummaries(summaries)

	return &search.Graph{
		Expansions:    expansions,
		NodeSummaries: summaries,
		Metadata:      meta,
	}, nil
}

func renderExpandEvent(ex *ExpansionRecord) (search.ExpandEvent, error) {
	candidates := make([]search.CandidateRecord, len(ex.Candidates))
	for i, c := range ex.Candidates {
		rendered, err := renderCandidate(c)
		if err != nil {
			return search.ExpandEvent{}, err
		}
		candidates[i] = rendered
	}
	notes := make([]search.ExpansionNote, len(ex.Notes))
	for i, n := range ex.Notes {
		notes[i] = search.ExpansionNote{Kind: n.Kind, Cap: n.Cap, PrunedNodeIDs: n.PrunedNodeIDs}
	}
	return search.ExpandEvent{
		ExpansionOrder:   ex.ExpansionOrder,
		NodeID:           ex.NodeID,
		StateFingerprint: hex.EncodeToString(ex.StateFingerprint[:]),
		FrontierPopKey: search.FrontierPopKey{
			FCost:         ex.PopFCost,
			Depth:         ex.PopDepth,
			CreationOrder: ex.PopCreationOrder,
		},
		Candidates:          candidates,
		CandidatesTruncated: ex.CandidatesTruncated,
		DeadEndReason:       ex.DeadEndReason,
		Notes:               notes,
	}, nil
}

func renderCandidate(c CandidateRecord) (search.CandidateRecord, error) {
	source := search.ScoreSource{Kind: c.ScoreSource}
	if c.ScoreSource == search.ScoreSourceModelDigest {
		source.ModelDigest = hex.EncodeToString(c.ModelDigest[:])
	}
	outcome, err := renderOutcome(c.Outcome)
	if err != nil {
		return search.CandidateRecord{}, err
	}
	return search.CandidateRecord{
		Index: c.Index,
		Action: search.CandidateAction{
			OpCode:        carrier.Code32FromBytes(c.OpCodeBytes),
			OpArgs:        c.OpArgs,
			CanonicalHash: hex.EncodeToString(c.CanonicalHash[:]),
		},
		Score: search.CandidateScore{
			Bonus:  c.ScoreBonus,
			Source: source,
		},
		Outcome: outcome,
	}, nil
}

func renderOutcome(o CandidateOutcomeRecord) (search.CandidateOutcome, error) {
	switch o.Kind {
	case search.OutcomeApplied:
		return search.CandidateOutcome{Kind: o.Kind, ToNode: o.ToNode}, nil
	case search.OutcomeDuplicateSuppressed:
		return search.CandidateOutcome{Kind: o.Kind, ExistingFingerprint: hex.EncodeToString(o.ExistingFingerprint[:])}, nil
	case search.OutcomeApplyFailed:
		return search.CandidateOutcome{Kind: o.Kind, ApplyFailureKind: o.ApplyFailureKind}, nil
	default:
		return search.CandidateOutcome{Kind: o.Kind}, nil
	}
}

func (t *SearchTape) metadataFromHeader() (search.Metadata, error) {
	worldID, err := headerString(t.Header, "world_id", true)
	if err != nil {
		return search.Metadata{}, err
	}
	schemaDescriptor, err := headerString(t.Header, "schema_descriptor", true)
	if err != nil {
		return search.Metadata{}, err
	}
	registryDigest, err := headerString(t.Header, "registry_digest", true)
	if err != nil {
		return search.Metadata{}, err
	}
	policySnapshotDigest, err := headerString(t.Header, "policy_snapshot_digest", true)
	if err != nil {
		return search.Metadata{}, err
	}
	searchPolicyDigest, err := headerString(t.Header, "search_policy_digest", true)
	if err != nil {
		return search.Metadata{}, err
	}
	rootStateFingerprint, err := headerString(t.Header, "root_state_fingerprint", true)
	if err != nil {
		return search.Metadata{}, err
	}
	dedupKey, err := headerString(t.Header, "dedup_key", true)
	if err != nil {
		return search.Metadata{}, err
	}
	pruneVisitedPolicy, err := headerString(t.Header, "prune_visited_policy", true)
	if err != nil {
		return search.Metadata{}, err
	}
	scorerDigest, err := headerString(t.Header, "scorer_digest", false)
	if err != nil {
		return search.Metadata{}, err
	}
	operatorSetDigest, err := headerString(t.Header, "operator_set_digest", false)
	if err != nil {
		return search.Metadata{}, err
	}
	rootIdentityDigest, err := headerString(t.Header, "root_identity_digest", false)
	if err != nil {
		return search.Metadata{}, err
	}
	rootEvidenceDigest, err := headerString(t.Header, "root_evidence_digest", false)
	if err != nil {
		return search.Metadata{}, err
	}

	return search.Metadata{
		WorldID:              worldID,
		SchemaDescriptor:     schemaDescriptor,
		RegistryDigest:       registryDigest,
		PolicySnapshotDigest: policySnapshotDigest,
		SearchPolicyDigest:   searchPolicyDigest,
		ScorerDigest:         scorerDigest,
		RootStateFingerprint: rootStateFingerprint,
		OperatorSetDigest:    operatorSetDigest,
		RootIdentityDigest:   rootIdentityDigest,
		RootEvidenceDigest:   rootEvidenceDigest,
		DedupKey:             search.DedupKey(dedupKey),
		PruneVisitedPolicy:   search.PruneVisitedPolicy(pruneVisitedPolicy),
	}, nil
}

func headerString(header map[string]any, key string, required bool) (string, error) {
	v, ok := header[key]
	if !ok || v == nil {
		if required {
			return "", &ParseError{Kind: ParseErrInvalidHeaderJSON, Field: key, Detail: fmt.Sprintf("header missing required field %q", key)}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ParseError{Kind: ParseErrInvalidHeaderJSON, Field: key, Detail: fmt.Sprintf("header field %q is not a string", key)}
	}
	return s, nil
}
