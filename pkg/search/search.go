// Copyright 2025 Certen Protocol
//
// Best-first search engine: the main expansion loop. Grounded on
// original_source/search/src/search.rs, restructured around Go's
// explicit-error-return idiom (the Rust original returns
// Result<SearchResult, SearchError> with the same shape).

package search

import (
	"fmt"
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/kernel"
	"github.com/certen/sterling/pkg/registry"
)

// Result is the output of a completed search run.
type Result struct {
	GoalNode *SearchNode
	Graph    *Graph
	Nodes    []SearchNode
}

// MetadataBindings are the snapshot digests bound into the graph's
// metadata section.
type MetadataBindings struct {
	WorldID              string
	SchemaDescriptor     string
	RegistryDigest       string
	PolicySnapshotDigest string
	SearchPolicyDigest   string

	// OperatorSetDigest, RootIdentityDigest, and RootEvidenceDigest mirror
	// the optional Cert-profile bindings on Graph.Metadata (spec.md §4.6
	// steps 10, 12, 13e); leave empty when the producer's world declares no
	// identity/evidence-plane obligations.
	OperatorSetDigest  string
	RootIdentityDigest string
	RootEvidenceDigest string
}

// Sink receives search events as they are produced, for interleaved tape
// emission (spec.md §4.4: "Graph and tape share one source of truth ...
// they are never recomputed from each other"). A nil Sink is valid — Run
// simply skips tape emission.
type Sink interface {
	OnNodeCreated(node SearchNode)
	OnExpansion(event ExpandEvent)
	OnTermination(reason TerminationReason, frontierHighWater uint64)
}

// Run executes best-first search from rootState.
//
// Returns an *Error with Kind ErrUnsupportedPolicyMode if policy declares
// an unsupported mode, or Kind ErrWorldContractViolation if the world
// proposes a candidate whose op_code is not in reg. Every other
// contract violation (scorer arity mismatch, a callback panic) is
// converted to a TerminationReason and Run still returns Ok — the
// evidence-preservation invariant (spec.md §4.4).
func Run(
	rootState *carrier.ByteState,
	world World,
	reg *registry.OperatorRegistry,
	policy Policy,
	sc Scorer,
	bindings MetadataBindings,
	sink Sink,
) (result *Result, err error) {
	if verr := policy.Validate(); verr != nil {
		return nil, &Error{Kind: ErrUnsupportedPolicyMode, Detail: verr.Error()}
	}

	frontier := NewBestFirstFrontier()
	var expansions []ExpandEvent
	var allNodes []SearchNode
	var nextNodeID uint64
	var nextCreationOrder uint64
	var expansionCount uint64
	var totalCandidatesGenerated uint64
	var totalDuplicatesSuppressed uint64
	var totalDeadEndsExhaustive uint64
	var totalDeadEndsBudgetLimited uint64

	rootFP := rootState.Fingerprint()
	rootFPHex := rootFP.HexDigest()

	root := SearchNode{
		NodeID:           nextNodeID,
		State:            rootState,
		StateFingerprint: rootFP,
		Depth:            0,
		CreationOrder:    nextCreationOrder,
	}
	nextNodeID++
	nextCreationOrder++

	rootIsGoal, panicked := isGoalSafe(world, root.State)
	if panicked {
		allNodes = append(allNodes, root)
		reason := TerminationReason{Kind: TerminationInternalPanic, PanicStage: PanicStageIsGoalRoot}
		graph := buildGraph(expansions, allNodes, reason, frontier.HighWater(),
			totalCandidatesGenerated, totalDuplicatesSuppressed,
			totalDeadEndsExhaustive, totalDeadEndsBudgetLimited, bindings, rootFPHex, policy, sc)
		if sink != nil {
			sink.OnNodeCreated(root)
			sink.OnTermination(reason, frontier.HighWater())
		}
		return &Result{Graph: graph, Nodes: allNodes}, nil
	}

	if sink != nil {
		sink.OnNodeCreated(root)
	}

	if rootIsGoal {
		allNodes = append(allNodes, root)
		reason := TerminationReason{Kind: TerminationGoalReached, NodeID: 0}
		graph := buildGraph(expansions, allNodes, reason, frontier.HighWater(),
			totalCandidatesGenerated, totalDuplicatesSuppressed,
			totalDeadEndsExhaustive, totalDeadEndsBudgetLimited, bindings, rootFPHex, policy, sc)
		if sink != nil {
			sink.OnTermination(reason, frontier.HighWater())
		}
		goal := allNodes[0]
		return &Result{GoalNode: &goal, Graph: graph, Nodes: allNodes}, nil
	}

	allNodes = append(allNodes, root)
	frontier.Push(root)

	var termination TerminationReason

	for {
		if frontier.IsEmpty() {
			termination = TerminationReason{Kind: TerminationFrontierExhausted}
			break
		}
		if expansionCount >= policy.MaxExpansions {
			termination = TerminationReason{Kind: TerminationExpansionBudgetExceeded}
			break
		}

		current, ok := frontier.Pop()
		if !ok {
			termination = TerminationReason{Kind: TerminationFrontierInvariant, FrontierInvariantStage: FrontierInvariantPopFromNonEmpty}
			break
		}
		currentFPHex := current.StateFingerprint.HexDigest()
		popKey := FrontierPopKey{FCost: current.FCost(), Depth: current.Depth, CreationOrder: current.CreationOrder}

		candidates, panicked := enumerateCandidatesSafe(world, current.State, reg)
		if panicked {
			termination = TerminationReason{Kind: TerminationInternalPanic, PanicStage: PanicStageEnumerateCandidates}
			break
		}
		SortCandidates(candidates)

		var notes []ExpansionNote
		candidatesTruncated := uint64(len(candidates)) > policy.MaxCandidatesPerNode
		if candidatesTruncated {
			candidates = candidates[:policy.MaxCandidatesPerNode]
			notes = append(notes, ExpansionNote{Kind: NoteCandidateCapReached, Cap: policy.MaxCandidatesPerNode})
		}

		scores, panicked := scoreCandidatesSafe(sc, current, candidates)
		if panicked {
			termination = TerminationReason{Kind: TerminationInternalPanic, PanicStage: PanicStageScoreCandidates}
			break
		}
		if len(scores) != len(candidates) {
			termination = TerminationReason{
				Kind: TerminationScorerContractViolation, Expected: uint64(len(candidates)), Actual: uint64(len(scores)),
			}
			break
		}

		type scoredCandidate struct {
			action CandidateAction
			score  CandidateScore
		}
		scored := make([]scoredCandidate, len(candidates))
		for i, c := range candidates {
			scored[i] = scoredCandidate{action: c, score: scores[i]}
		}
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].score.Bonus != scored[j].score.Bonus {
				return scored[i].score.Bonus > scored[j].score.Bonus
			}
			return scored[i].action.CanonicalHash < scored[j].action.CanonicalHash
		})

		totalCandidatesGenerated += uint64(len(candidates))

		var candidateRecords []CandidateRecord
		var childrenCreated uint64
		foundGoal := false
		var goalNodeID uint64

		worldContractViolated := false
		var violatingOpCode carrier.Code32

		for sortedIdx, sc2 := range scored {
			candidate, score := sc2.action, sc2.score

			if !reg.Contains(candidate.OpCode) {
				candidateRecords = append(candidateRecords, CandidateRecord{
					Index: uint64(sortedIdx), Action: candidate, Score: score,
					Outcome: CandidateOutcome{Kind: OutcomeIllegalOperator},
				})
				worldContractViolated = true
				violatingOpCode = candidate.OpCode
				break
			}

			if uint64(current.Depth+1) > uint64(policy.MaxDepth) {
				candidateRecords = append(candidateRecords, CandidateRecord{
					Index: uint64(sortedIdx), Action: candidate, Score: score,
					Outcome: CandidateOutcome{Kind: OutcomeSkippedByDepthLimit},
				})
				continue
			}

			newState, _, applyErr := kernel.Apply(current.State, candidate.OpCode, candidate.OpArgs, reg)
			if applyErr != nil {
				kind := applyFailureKind(applyErr)
				candidateRecords = append(candidateRecords, CandidateRecord{
					Index: uint64(sortedIdx), Action: candidate, Score: score,
					Outcome: CandidateOutcome{Kind: OutcomeApplyFailed, ApplyFailureKind: kind},
				})
				continue
			}

			childFP := newState.Fingerprint()
			childFPHex := childFP.HexDigest()

			if frontier.IsVisited(childFPHex) {
				totalDuplicatesSuppressed++
				candidateRecords = append(candidateRecords, CandidateRecord{
					Index: uint64(sortedIdx), Action: candidate, Score: score,
					Outcome: CandidateOutcome{Kind: OutcomeDuplicateSuppressed, ExistingFingerprint: childFPHex},
				})
				continue
			}

			candidateCopy := candidate
			child := SearchNode{
				NodeID:           nextNodeID,
				ParentID:         ptrUint64(current.NodeID),
				State:            newState,
				StateFingerprint: childFP,
				Depth:            current.Depth + 1,
				GCost:            current.GCost + 1,
				HCost:            0,
				CreationOrder:    nextCreationOrder,
				ProducingAction:  &candidateCopy,
			}
			nextNodeID++
			nextCreationOrder++

			candidateRecords = append(candidateRecords, CandidateRecord{
				Index: uint64(sortedIdx), Action: candidate, Score: score,
				Outcome: CandidateOutcome{Kind: OutcomeApplied, ToNode: child.NodeID},
			})

			childIsGoal, panicked := isGoalSafe(world, child.State)
			if panicked {
				allNodes = append(allNodes, child)
				if sink != nil {
					sink.OnNodeCreated(child)
				}
				termination = TerminationReason{Kind: TerminationInternalPanic, PanicStage: PanicStageIsGoalExpansion}
				expansions = append(expansions, ExpandEvent{
					ExpansionOrder: expansionCount, NodeID: current.NodeID, StateFingerprint: currentFPHex,
					FrontierPopKey: popKey, Candidates: candidateRecords, CandidatesTruncated: candidatesTruncated, Notes: notes,
				})
				graph := buildGraph(expansions, allNodes, termination, frontier.HighWater(),
					totalCandidatesGenerated, totalDuplicatesSuppressed,
					totalDeadEndsExhaustive, totalDeadEndsBudgetLimited, bindings, rootFPHex, policy, sc)
				return &Result{Graph: graph, Nodes: allNodes}, nil
			}
			if childIsGoal {
				foundGoal = true
				goalNodeID = child.NodeID
			}

			allNodes = append(allNodes, child)
			if sink != nil {
				sink.OnNodeCreated(child)
			}
			frontier.Push(child)
			childrenCreated++
		}

		if worldContractViolated {
			expansions = append(expansions, ExpandEvent{
				ExpansionOrder: expansionCount, NodeID: current.NodeID, StateFingerprint: currentFPHex,
				FrontierPopKey: popKey, Candidates: candidateRecords, CandidatesTruncated: candidatesTruncated, Notes: notes,
			})
			return nil, &Error{
				Kind:   ErrWorldContractViolation,
				Detail: fmt.Sprintf("candidate op_code %s not in registry", violatingOpCode),
			}
		}

		var deadEndReason *DeadEndReason
		if childrenCreated == 0 {
			reason := DeadEndExhaustive
			if candidatesTruncated {
				reason = DeadEndBudgetLimited
			}
			frontier.MarkDeadEnd(currentFPHex)
			if reason == DeadEndExhaustive {
				totalDeadEndsExhaustive++
			} else {
				totalDeadEndsBudgetLimited++
			}
			deadEndReason = &reason
		}

		if uint64(frontier.Len()) > policy.MaxFrontierSize {
			prunedIDs := frontier.PruneTo(int(policy.MaxFrontierSize))
			if len(prunedIDs) > 0 {
				notes = append(notes, ExpansionNote{Kind: NoteFrontierPruned, PrunedNodeIDs: prunedIDs})
			}
		}

		event := ExpandEvent{
			ExpansionOrder: expansionCount, NodeID: current.NodeID, StateFingerprint: currentFPHex,
			FrontierPopKey: popKey, Candidates: candidateRecords, CandidatesTruncated: candidatesTruncated,
			DeadEndReason: deadEndReason, Notes: notes,
		}
		expansions = append(expansions, event)
		if sink != nil {
			sink.OnExpansion(event)
		}
		expansionCount++

		if foundGoal {
			termination = TerminationReason{Kind: TerminationGoalReached, NodeID: goalNodeID}
			break
		}
	}

	var goalNode *SearchNode
	if termination.Kind == TerminationGoalReached {
		for i := range allNodes {
			if allNodes[i].NodeID == termination.NodeID {
				goalNode = &allNodes[i]
				break
			}
		}
	}

	graph := buildGraph(expansions, allNodes, termination, frontier.HighWater(),
		totalCandidatesGenerated, totalDuplicatesSuppressed,
		totalDeadEndsExhaustive, totalDeadEndsBudgetLimited, bindings, rootFPHex, policy, sc)
	if sink != nil {
		sink.OnTermination(termination, frontier.HighWater())
	}

	return &Result{GoalNode: goalNode, Graph: graph, Nodes: allNodes}, nil
}

// ReconstructPath walks parent links from goalNodeID back to the root,
// returning node IDs root-first.
func ReconstructPath(nodes []SearchNode, goalNodeID uint64) []uint64 {
	byID := make(map[uint64]SearchNode, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}
	var path []uint64
	currentID := &goalNodeID
	for currentID != nil {
		path = append(path, *currentID)
		node, ok := byID[*currentID]
		if !ok {
			break
		}
		currentID = node.ParentID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func buildGraph(
	expansions []ExpandEvent,
	allNodes []SearchNode,
	termination TerminationReason,
	frontierHighWater uint64,
	totalCandidatesGenerated uint64,
	totalDuplicatesSuppressed uint64,
	totalDeadEndsExhaustive uint64,
	totalDeadEndsBudgetLimited uint64,
	bindings MetadataBindings,
	rootFPHex string,
	policy Policy,
	sc Scorer,
) *Graph {
	totalExpansions := uint64(len(expansions))

	summaries := make([]NodeSummary, len(allNodes))
	for i, n := range allNodes {
		var expansionOrder *uint64
		var deadEndReason *DeadEndReason
		for _, e := range expansions {
			if e.NodeID == n.NodeID {
				eo := e.ExpansionOrder
				expansionOrder = &eo
				deadEndReason = e.DeadEndReason
				break
			}
		}
		isGoal := termination.Kind == TerminationGoalReached && termination.NodeID == n.NodeID

		summaries[i] = NodeSummary{
			NodeID: n.NodeID, ParentID: n.ParentID, StateFingerprint: n.StateFingerprint.HexDigest(),
			Depth: n.Depth, FCost: n.FCost(), IsGoal: isGoal, DeadEndReason: deadEndReason, ExpansionOrder: expansionOrder,
		}
	}
	SortNodeSummaries(summaries)

	scorerDigest := ""
	if sc != nil {
		scorerDigest = sc.Digest()
	}

	return &Graph{
		Expansions:    expansions,
		NodeSummaries: summaries,
		Metadata: Metadata{
			WorldID: bindings.WorldID, SchemaDescriptor: bindings.SchemaDescriptor,
			RegistryDigest: bindings.RegistryDigest, PolicySnapshotDigest: bindings.PolicySnapshotDigest,
			SearchPolicyDigest: bindings.SearchPolicyDigest, ScorerDigest: scorerDigest,
			OperatorSetDigest: bindings.OperatorSetDigest, RootIdentityDigest: bindings.RootIdentityDigest,
			RootEvidenceDigest: bindings.RootEvidenceDigest,
			RootStateFingerprint: rootFPHex, TotalExpansions: totalExpansions,
			TotalCandidatesGenerated: totalCandidatesGenerated, TotalDuplicatesSuppressed: totalDuplicatesSuppressed,
			TotalDeadEndsExhaustive: totalDeadEndsExhaustive, TotalDeadEndsBudgetLimited: totalDeadEndsBudgetLimited,
			TerminationReason: termination, FrontierHighWater: frontierHighWater,
			DedupKey: policy.DedupKey, PruneVisitedPolicy: policy.PruneVisitedPolicy,
		},
	}
}

func applyFailureKind(err error) ApplyFailureKind {
	af, ok := err.(*kernel.ApplyFailure)
	if !ok {
		return ApplyFailureUnknownOperator
	}
	switch af.Kind {
	case "precondition_not_met":
		return ApplyFailurePreconditionNotMet
	case "argument_mismatch":
		return ApplyFailureArgumentMismatch
	default:
		return ApplyFailureUnknownOperator
	}
}

func ptrUint64(v uint64) *uint64 { return &v }

// isGoalSafe invokes world.IsGoal under panic isolation, per spec.md §4.4's
// "all callbacks ... must be run under panic isolation" requirement.
func isGoalSafe(world World, state *carrier.ByteState) (isGoal bool, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
		}
	}()
	return world.IsGoal(state), false
}

func enumerateCandidatesSafe(world World, state *carrier.ByteState, reg OperatorContains) (candidates []CandidateAction, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
		}
	}()
	return world.EnumerateCandidates(state, reg), false
}

func scoreCandidatesSafe(sc Scorer, node SearchNode, candidates []CandidateAction) (scores []CandidateScore, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
		}
	}()
	return sc.ScoreCandidates(node, candidates), false
}
