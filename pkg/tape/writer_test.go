// Copyright 2025 Certen Protocol
//
// Adapts original_source/search/src/tape_writer.rs's test module:
// write_single_node_creation, chain_integrity_across_records,
// finish_without_termination_fails, double_termination_fails,
// node_after_termination_fails, op_args_too_long_rejected.

package tape

import (
	"strings"
	"testing"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
)

func testHeaderBytes() []byte {
	return []byte(`{"schema_version":"search_tape.v1","world_id":"test"}`)
}

func testFingerprint(b byte) codec.ContentHash {
	return codec.Hash(codec.DomainSearchNode, []byte{b})
}

func minimalNode(id uint64) search.SearchNode {
	state, err := carrier.NewByteState(1, 1)
	if err != nil {
		panic(err)
	}
	return search.SearchNode{
		NodeID:           id,
		State:            state,
		StateFingerprint: testFingerprint(byte(id)),
		Depth:            0,
		CreationOrder:    id,
	}
}

func TestTapeWriter_WriteSingleNodeCreation(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 1)

	out, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out.RecordCount != 2 {
		t.Errorf("record count = %d, want 2", out.RecordCount)
	}
	if len(out.Bytes) < MinTapeSize {
		t.Errorf("output shorter than MinTapeSize")
	}
}

func TestTapeWriter_ChainIntegrityAcrossRecords(t *testing.T) {
	w1 := NewTapeWriter(testHeaderBytes())
	w1.OnNodeCreated(minimalNode(0))
	w1.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 1)
	out1, err := w1.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	w2 := NewTapeWriter(testHeaderBytes())
	w2.OnNodeCreated(minimalNode(0))
	w2.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 1)
	out2, err := w2.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if out1.FinalChainHash != out2.FinalChainHash {
		t.Error("identical event sequences must produce identical chain hashes")
	}

	w3 := NewTapeWriter(testHeaderBytes())
	w3.OnNodeCreated(minimalNode(1)) // different fingerprint
	w3.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 1)
	out3, err := w3.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out1.FinalChainHash == out3.FinalChainHash {
		t.Error("differing event sequences must produce differing chain hashes")
	}
}

func TestTapeWriter_FinishWithoutTerminationFails(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	_, err := w.Finish()
	werr, ok := err.(*WriteError)
	if !ok || werr.Kind != WriteErrNotTerminated {
		t.Fatalf("expected WriteErrNotTerminated, got %v", err)
	}
}

func TestTapeWriter_DoubleTerminationFails(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	if werr, ok := w.Err().(*WriteError); !ok || werr.Kind != WriteErrAlreadyTerminated {
		t.Fatalf("expected WriteErrAlreadyTerminated after second termination, got %v", w.Err())
	}
	_, err := w.Finish()
	if err == nil {
		t.Fatal("Finish must propagate the sticky error")
	}
}

func TestTapeWriter_NodeAfterTerminationFails(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	w.OnNodeCreated(minimalNode(0))
	if werr, ok := w.Err().(*WriteError); !ok || werr.Kind != WriteErrAlreadyTerminated {
		t.Fatalf("expected WriteErrAlreadyTerminated, got %v", w.Err())
	}
}

func TestTapeWriter_OpArgsTooLongRejected(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	hugeArgs := make([]byte, 70000)
	event := search.ExpandEvent{
		StateFingerprint: testFingerprint(0).HexDigest(),
		Candidates: []search.CandidateRecord{
			{
				Action: search.CandidateAction{
					OpCode:        carrier.NewCode32(0, 0, 0),
					OpArgs:        hugeArgs,
					CanonicalHash: testFingerprint(1).HexDigest(),
				},
				Score:   search.CandidateScore{Source: search.ScoreSource{Kind: search.ScoreSourceUniform}},
				Outcome: search.CandidateOutcome{Kind: search.OutcomeIllegalOperator},
			},
		},
	}
	w.OnExpansion(event)
	werr, ok := w.Err().(*WriteError)
	if !ok || werr.Kind != WriteErrOpArgsTooLong {
		t.Fatalf("expected WriteErrOpArgsTooLong, got %v", w.Err())
	}
}

func TestTapeWriter_AllTerminationReasonsWritable(t *testing.T) {
	reasons := []search.TerminationReason{
		{Kind: search.TerminationGoalReached, NodeID: 5},
		{Kind: search.TerminationFrontierExhausted},
		{Kind: search.TerminationExpansionBudgetExceeded},
		{Kind: search.TerminationDepthBudgetExceeded},
		{Kind: search.TerminationWorldContractViolation},
		{Kind: search.TerminationScorerContractViolation, Expected: 3, Actual: 2},
		{Kind: search.TerminationInternalPanic, PanicStage: search.PanicStageScoreCandidates},
		{Kind: search.TerminationFrontierInvariant, FrontierInvariantStage: search.FrontierInvariantPopFromNonEmpty},
	}
	for _, r := range reasons {
		w := NewTapeWriter(testHeaderBytes())
		w.OnTermination(r, 0)
		if _, err := w.Finish(); err != nil {
			t.Errorf("termination kind %s: Finish failed: %v", r.Kind, err)
		}
	}
}

func TestTapeWriter_AllOutcomeTypesWritable(t *testing.T) {
	fp := testFingerprint(9).HexDigest()
	outcomes := []search.CandidateOutcome{
		{Kind: search.OutcomeApplied, ToNode: 1},
		{Kind: search.OutcomeDuplicateSuppressed, ExistingFingerprint: fp},
		{Kind: search.OutcomeIllegalOperator},
		{Kind: search.OutcomeApplyFailed, ApplyFailureKind: search.ApplyFailurePreconditionNotMet},
		{Kind: search.OutcomeSkippedByDepthLimit},
		{Kind: search.OutcomeSkippedByPolicy},
		{Kind: search.OutcomeNotEvaluated},
	}
	for _, o := range outcomes {
		w := NewTapeWriter(testHeaderBytes())
		event := search.ExpandEvent{
			StateFingerprint: testFingerprint(0).HexDigest(),
			Candidates: []search.CandidateRecord{
				{
					Action: search.CandidateAction{
						OpCode:        carrier.NewCode32(0, 0, 0),
						CanonicalHash: testFingerprint(1).HexDigest(),
					},
					Score:   search.CandidateScore{Source: search.ScoreSource{Kind: search.ScoreSourceUniform}},
					Outcome: o,
				},
			},
		}
		w.OnExpansion(event)
		w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
		if _, err := w.Finish(); err != nil {
			t.Errorf("outcome kind %s: Finish failed: %v", o.Kind, err)
		}
	}
}

func TestTapeWriter_RejectsCanonicalHashThatIsNotValidHex(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	event := search.ExpandEvent{
		StateFingerprint: testFingerprint(0).HexDigest(),
		Candidates: []search.CandidateRecord{
			{
				Action:  search.CandidateAction{OpCode: carrier.NewCode32(0, 0, 0), CanonicalHash: "not-hex"},
				Score:   search.CandidateScore{Source: search.ScoreSource{Kind: search.ScoreSourceUniform}},
				Outcome: search.CandidateOutcome{Kind: search.OutcomeIllegalOperator},
			},
		},
	}
	w.OnExpansion(event)
	werr, ok := w.Err().(*WriteError)
	if !ok || werr.Kind != WriteErrInvalidHexDigest {
		t.Fatalf("expected WriteErrInvalidHexDigest, got %v", w.Err())
	}
	if !strings.Contains(werr.Error(), "invalid hex digest") {
		t.Errorf("Error() = %q, want it to mention invalid hex digest", werr.Error())
	}
}
