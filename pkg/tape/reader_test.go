// Copyright 2025 Certen Protocol
//
// Adapts original_source/search/src/tape_reader.rs's test module:
// round_trip_minimal, round_trip_with_expansion, plus the structural and
// framing failure modes TapeParseError enumerates.

package tape

import (
	"testing"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/search"
)

func TestReadTape_RoundTripMinimal(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 1)
	out, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	tape, err := ReadTape(out.Bytes)
	if err != nil {
		t.Fatalf("ReadTape: %v", err)
	}
	if tape.RecordCount != 2 {
		t.Errorf("record count = %d, want 2", tape.RecordCount)
	}
	if len(tape.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(tape.Records))
	}
	if tape.Records[0].Type != RecordTypeNodeCreation || tape.Records[0].NodeCreation == nil {
		t.Fatal("first record must be a node creation")
	}
	if tape.Records[1].Type != RecordTypeTermination || tape.Records[1].Termination == nil {
		t.Fatal("last record must be a termination")
	}
	nc := tape.Records[0].NodeCreation
	if nc.NodeID != 0 {
		t.Errorf("node_id = %d, want 0", nc.NodeID)
	}
	if nc.ParentID != nil {
		t.Error("root node must have no parent_id")
	}
	wantFP := testFingerprint(0)
	gotFP := rawToContentHash(nc.StateFingerprint)
	if !gotFP.Equal(wantFP) {
		t.Errorf("state_fingerprint = %s, want %s", gotFP, wantFP)
	}
	if tape.Header["world_id"] != "test" {
		t.Errorf("header world_id = %v, want test", tape.Header["world_id"])
	}
}

func TestReadTape_RoundTripWithExpansion(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	w.OnNodeCreated(minimalNode(1))
	event := search.ExpandEvent{
		ExpansionOrder:   0,
		NodeID:           0,
		StateFingerprint: testFingerprint(0).HexDigest(),
		FrontierPopKey:   search.FrontierPopKey{FCost: 0, Depth: 0, CreationOrder: 0},
		Candidates: []search.CandidateRecord{
			{
				Index: 0,
				Action: search.CandidateAction{
					OpCode: carrier.NewCode32(1, 1, 2), OpArgs: []byte{9, 9},
					CanonicalHash: testFingerprint(2).HexDigest(),
				},
				Score:   search.CandidateScore{Bonus: 3, Source: search.ScoreSource{Kind: search.ScoreSourceUniform}},
				Outcome: search.CandidateOutcome{Kind: search.OutcomeApplied, ToNode: 1},
			},
		},
		Notes: []search.ExpansionNote{
			{Kind: search.NoteFrontierPruned, PrunedNodeIDs: []uint64{7, 8}},
		},
	}
	w.OnExpansion(event)
	w.OnTermination(search.TerminationReason{Kind: search.TerminationGoalReached, NodeID: 1}, 3)
	out, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	tape, err := ReadTape(out.Bytes)
	if err != nil {
		t.Fatalf("ReadTape: %v", err)
	}
	if len(tape.Records) != 4 {
		t.Fatalf("len(Records) = %d, want 4", len(tape.Records))
	}
	ex := tape.Records[2].Expansion
	if ex == nil {
		t.Fatal("third record must be an expansion")
	}
	if len(ex.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1", len(ex.Candidates))
	}
	cand := ex.Candidates[0]
	if cand.Outcome.Kind != search.OutcomeApplied || cand.Outcome.ToNode != 1 {
		t.Errorf("candidate outcome = %+v", cand.Outcome)
	}
	if len(ex.Notes) != 1 || ex.Notes[0].Kind != search.NoteFrontierPruned || len(ex.Notes[0].PrunedNodeIDs) != 2 {
		t.Errorf("notes = %+v", ex.Notes)
	}
	term := tape.Records[3].Termination
	if term == nil || term.Reason.Kind != search.TerminationGoalReached || term.Reason.NodeID != 1 {
		t.Fatalf("termination = %+v", term)
	}
	if term.FrontierHighWater != 3 {
		t.Errorf("frontier_high_water = %d, want 3", term.FrontierHighWater)
	}
}

func TestReadTape_RejectsBadMagic(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, _ := w.Finish()
	corrupted := append([]byte(nil), out.Bytes...)
	corrupted[0] = 'X'
	_, err := ReadTape(corrupted)
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrBadMagic {
		t.Fatalf("expected ParseErrBadMagic, got %v", err)
	}
}

func TestReadTape_RejectsTooShortInput(t *testing.T) {
	_, err := ReadTape([]byte{1, 2, 3})
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrTooShort {
		t.Fatalf("expected ParseErrTooShort, got %v", err)
	}
}

func TestReadTape_RejectsUnsupportedVersion(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, _ := w.Finish()
	corrupted := append([]byte(nil), out.Bytes...)
	corrupted[4] = 0xFF
	_, err := ReadTape(corrupted)
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrUnsupportedVersion {
		t.Fatalf("expected ParseErrUnsupportedVersion, got %v", err)
	}
}

func TestReadTape_RejectsTamperedChainHash(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, _ := w.Finish()
	corrupted := append([]byte(nil), out.Bytes...)
	// the final chain hash starts 36 bytes before the end (footer: 8+32+4).
	corrupted[len(corrupted)-FooterSize+8] ^= 0xFF
	_, err := ReadTape(corrupted)
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrChainHashMismatch {
		t.Fatalf("expected ParseErrChainHashMismatch, got %v", err)
	}
}

func TestReadTape_RejectsTrailingBytes(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, _ := w.Finish()
	padded := append(append([]byte(nil), out.Bytes...), 0x00)
	_, err := ReadTape(padded)
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrTrailingBytes {
		t.Fatalf("expected ParseErrTrailingBytes, got %v", err)
	}
}

func TestReadTape_RejectsMissingTermination(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	// Manually append a footer without ever calling OnTermination, bypassing
	// Finish's own not-terminated guard to exercise the reader's check.
	w.buf = appendU64LE(w.buf, w.recordCount)
	w.buf = append(w.buf, w.chainHash[:]...)
	w.buf = append(w.buf, FooterMagic[:]...)

	_, err := ReadTape(w.buf)
	perr, ok := err.(*ParseError)
	if !ok || perr.Kind != ParseErrMissingTermination {
		t.Fatalf("expected ParseErrMissingTermination, got %v", err)
	}
}

func TestReadTape_RejectsDuplicateNodeID(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	w.OnNodeCreated(minimalNode(0))
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	_, rerr := ReadTape(out.Bytes)
	perr, ok := rerr.(*ParseError)
	if !ok || perr.Kind != ParseErrDuplicateNodeID {
		t.Fatalf("expected ParseErrDuplicateNodeID, got %v", rerr)
	}
}

func TestReadTape_RejectsNonMonotonicParentID(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	parent := uint64(5)
	w.OnNodeCreated(search.SearchNode{NodeID: 0, ParentID: &parent, StateFingerprint: testFingerprint(0)})
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	_, rerr := ReadTape(out.Bytes)
	perr, ok := rerr.(*ParseError)
	if !ok || perr.Kind != ParseErrNonMonotonicParentID {
		t.Fatalf("expected ParseErrNonMonotonicParentID, got %v", rerr)
	}
}

func TestReadTape_RejectsInvalidAppliedNodeRef(t *testing.T) {
	w := NewTapeWriter(testHeaderBytes())
	w.OnNodeCreated(minimalNode(0))
	event := search.ExpandEvent{
		NodeID:           0,
		StateFingerprint: testFingerprint(0).HexDigest(),
		Candidates: []search.CandidateRecord{
			{
				Action:  search.CandidateAction{OpCode: carrier.NewCode32(0, 0, 0), CanonicalHash: testFingerprint(1).HexDigest()},
				Score:   search.CandidateScore{Source: search.ScoreSource{Kind: search.ScoreSourceUniform}},
				Outcome: search.CandidateOutcome{Kind: search.OutcomeApplied, ToNode: 99},
			},
		},
	}
	w.OnExpansion(event)
	w.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	_, rerr := ReadTape(out.Bytes)
	perr, ok := rerr.(*ParseError)
	if !ok || perr.Kind != ParseErrInvalidAppliedNodeRef {
		t.Fatalf("expected ParseErrInvalidAppliedNodeRef, got %v", rerr)
	}
}
