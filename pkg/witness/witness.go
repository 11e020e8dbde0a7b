// Copyright 2025 Certen Protocol
//
// Winning-path replay: a Cert-only verification primitive that re-executes
// the goal-path operator sequence from a compiled root ByteState, checking
// state fingerprints at every step and invoking a world-specific
// InvariantChecker for semantic checks the kernel itself cannot express.
// Grounded on original_source/harness/src/witness.rs, adapted from that
// file's Rust SearchTapeV1/TapeRecordV1 enum walk onto pkg/tape's already
// fully-parsed *tape.SearchTape and pkg/kernel.Apply.
package witness

import (
	"encoding/hex"
	"fmt"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/kernel"
	"github.com/certen/sterling/pkg/registry"
	"github.com/certen/sterling/pkg/search"
	"github.com/certen/sterling/pkg/tape"
)

// ObligationWinningPathReplay is the evidence_obligations string that gates
// this check (spec.md §4.8): a bundle only carries the cost of replay when
// its compilation manifest actually declares it.
const ObligationWinningPathReplay = "winning_path_replay_v1"

// InvariantChecker is invoked once per replayed edge, after apply() succeeds
// and the child fingerprint has already been verified. Implementors check
// semantic properties pkg/kernel's mechanical effect-kind validation cannot
// express (e.g. a world-specific monotonicity rule).
type InvariantChecker interface {
	Check(stepIndex int, preState, postState *carrier.ByteState, opCode carrier.Code32, opArgs []byte) error
}

// NoopInvariantChecker accepts every step. Worlds with no invariant beyond
// fingerprint verification use this.
type NoopInvariantChecker struct{}

func (NoopInvariantChecker) Check(int, *carrier.ByteState, *carrier.ByteState, carrier.Code32, []byte) error {
	return nil
}

// Result is a successful replay: the final state, the number of edges
// walked, and the full root-to-goal node id path.
type Result struct {
	FinalState *carrier.ByteState
	StepCount  int
	Path       []uint64
}

// ReplayWinningPath replays the winning path recorded in t, starting from
// rootState, re-applying each edge's operator through reg via kernel.Apply.
//
// Returns ErrNoGoalReached if t has no GoalReached termination — this means
// replay doesn't apply, not that verification failed; the caller treats it
// as vacuously ok.
func ReplayWinningPath(t *tape.SearchTape, rootState *carrier.ByteState, reg *registry.OperatorRegistry, checker InvariantChecker) (*Result, error) {
	goalNodeID, err := findGoalNodeID(t)
	if err != nil {
		return nil, err
	}

	path, err := reconstructPath(t, goalNodeID)
	if err != nil {
		return nil, err
	}

	edges, err := extractEdges(t, path)
	if err != nil {
		return nil, err
	}

	current := rootState.Clone()
	if err := verifyNodeFingerprint(t, path[0], current, 0); err != nil {
		return nil, err
	}

	for stepIndex, e := range edges {
		pre := current.Clone()

		next, _, err := kernel.Apply(current, e.opCode, e.opArgs, reg)
		if err != nil {
			return nil, &ReplayError{Kind: ErrReplayApplyFailed, StepIndex: stepIndex, Detail: err.Error()}
		}
		current = next

		childNodeID := path[stepIndex+1]
		if err := verifyNodeFingerprint(t, childNodeID, current, stepIndex); err != nil {
			return nil, err
		}

		if err := checker.Check(stepIndex, pre, current, e.opCode, e.opArgs); err != nil {
			return nil, &ReplayError{Kind: ErrInvariantViolation, StepIndex: stepIndex, Detail: err.Error()}
		}
	}

	return &Result{FinalState: current, StepCount: len(edges), Path: path}, nil
}

type replayEdge struct {
	opCode carrier.Code32
	opArgs []byte
}

func findGoalNodeID(t *tape.SearchTape) (uint64, error) {
	for _, r := range t.Records {
		if r.Type == tape.RecordTypeTermination && r.Termination.Reason.Kind == search.TerminationGoalReached {
			return r.Termination.Reason.NodeID, nil
		}
	}
	return 0, &ReplayError{Kind: ErrNoGoalReached}
}

// reconstructPath walks backward from goalNodeID via parent_id links (built
// from every NodeCreation record), then reverses to root-first order.
func reconstructPath(t *tape.SearchTape, goalNodeID uint64) ([]uint64, error) {
	parentOf := make(map[uint64]*uint64, len(t.Records))
	known := make(map[uint64]bool, len(t.Records))
	for _, r := range t.Records {
		if r.Type == tape.RecordTypeNodeCreation {
			parentOf[r.NodeCreation.NodeID] = r.NodeCreation.ParentID
			known[r.NodeCreation.NodeID] = true
		}
	}

	var path []uint64
	seen := make(map[uint64]bool)
	current := goalNodeID
	for {
		if seen[current] {
			return nil, &ReplayError{Kind: ErrPathNodeMissing, NodeID: current, Detail: "cycle detected in parent chain"}
		}
		if !known[current] {
			return nil, &ReplayError{Kind: ErrPathNodeMissing, NodeID: current}
		}
		seen[current] = true
		path = append(path, current)
		parent := parentOf[current]
		if parent == nil {
			break
		}
		current = *parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// extractEdges finds, for each parent->child pair on path, the unique
// Applied candidate in the parent's expansion record that produced child.
func extractEdges(t *tape.SearchTape, path []uint64) ([]replayEdge, error) {
	if len(path) < 2 {
		return nil, nil
	}

	expansionByNode := make(map[uint64]*tape.ExpansionRecord, len(t.Records))
	for i := range t.Records {
		r := &t.Records[i]
		if r.Type == tape.RecordTypeExpansion {
			expansionByNode[r.Expansion.NodeID] = r.Expansion
		}
	}

	edges := make([]replayEdge, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		parent, child := path[i], path[i+1]

		expansion, ok := expansionByNode[parent]
		if !ok {
			return nil, &ReplayError{Kind: ErrExpansionMissing, NodeID: parent}
		}

		var match *tape.CandidateRecord
		count := 0
		for ci := range expansion.Candidates {
			c := &expansion.Candidates[ci]
			if c.Outcome.Kind == search.OutcomeApplied && c.Outcome.ToNode == child {
				match = c
				count++
			}
		}
		switch count {
		case 0:
			return nil, &ReplayError{Kind: ErrReplayEdgeMissing, NodeID: parent, ChildNodeID: child}
		case 1:
			edges = append(edges, replayEdge{
				opCode: carrier.Code32FromBytes(match.OpCodeBytes),
				opArgs: match.OpArgs,
			})
		default:
			return nil, &ReplayError{Kind: ErrReplayEdgeAmbiguous, NodeID: parent, ChildNodeID: child, Count: count}
		}
	}
	return edges, nil
}

func verifyNodeFingerprint(t *tape.SearchTape, nodeID uint64, state *carrier.ByteState, stepIndex int) error {
	var expected [32]byte
	found := false
	for _, r := range t.Records {
		if r.Type == tape.RecordTypeNodeCreation && r.NodeCreation.NodeID == nodeID {
			expected = r.NodeCreation.StateFingerprint
			found = true
			break
		}
	}
	if !found {
		return &ReplayError{Kind: ErrPathNodeMissing, NodeID: nodeID}
	}

	actual, err := fingerprintRaw(state)
	if err != nil {
		return &ReplayError{Kind: ErrReplayFingerprintMismatch, StepIndex: stepIndex, Detail: err.Error()}
	}
	if expected != actual {
		return &ReplayError{
			Kind:      ErrReplayFingerprintMismatch,
			StepIndex: stepIndex,
			Expected:  hex.EncodeToString(expected[:]),
			Actual:    hex.EncodeToString(actual[:]),
		}
	}
	return nil
}

func fingerprintRaw(state *carrier.ByteState) ([32]byte, error) {
	b, err := state.Fingerprint().Bytes()
	if err != nil {
		return [32]byte{}, fmt.Errorf("fingerprint bytes: %w", err)
	}
	if len(b) != 32 {
		return [32]byte{}, fmt.Errorf("fingerprint is %d bytes, want 32", len(b))
	}
	var out [32]byte
	copy(out[:], b)
	return out, nil
}
