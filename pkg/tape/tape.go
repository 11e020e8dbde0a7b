// Copyright 2025 Certen Protocol
//
// Search tape: the `.stap` binary streaming counterpart to search_graph.json.
// Framed records chained by a running hash so a verifier can catch tampering
// in O(1) extra space per record, without holding the whole graph in memory.
// Grounded on original_source/search/src/tape.rs/tape_writer.rs/tape_reader.rs.
//
// Wire layout:
//
//	[magic:4 = "STAP"][version:u16le][header_len:u32le][header:canonical JSON]
//	record* : [frame_len:u32le][record_type:u8][body...]   -- frame_len excludes itself
//	[record_count:u64le][final_chain_hash:32][footer_magic:4 = "PATS"]
//
// The chain hash seeds from H(DomainSearchTape, header_bytes) and advances
// over every COMPLETE frame (length prefix included):
//
//	chain_0 = H(DomainSearchTape, header_bytes)
//	chain_i = H(DomainSearchTapeChain, chain_{i-1} || frame_i_bytes)
package tape

import (
	"encoding/hex"

	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
)

// Magic is the 4-byte .stap header tag.
var Magic = [4]byte{'S', 'T', 'A', 'P'}

// FooterMagic is the 4-byte .stap footer tag.
var FooterMagic = [4]byte{'P', 'A', 'T', 'S'}

// Version is the only wire version this package writes or accepts. No
// forward compatibility: an unknown version is rejected outright.
const Version uint16 = 1

// FooterSize is record_count(8) + final_chain_hash(32) + footer_magic(4).
const FooterSize = 8 + 32 + 4

// MinTapeSize is magic(4) + version(2) + header_len(4) + FooterSize, the
// smallest possible tape (empty header, zero records — never actually
// produced since every tape must end in a termination record, but the
// floor a parser checks before reading anything else).
const MinTapeSize = 4 + 2 + 4 + FooterSize

// Record type tags.
const (
	RecordTypeNodeCreation byte = 1
	RecordTypeExpansion    byte = 2
	RecordTypeTermination  byte = 3
)

// DeadEndReason tags.
const (
	tagDeadEndNone          byte = 0
	tagDeadEndExhaustive    byte = 1
	tagDeadEndBudgetLimited byte = 2
)

// CandidateOutcome tags — contiguous 0..6, matching the tape format's closed
// tag set (search.OutcomeNotEvaluated is reserved but never produced by
// search.Run in M1).
const (
	outcomeApplied             byte = 0
	outcomeDuplicateSuppressed byte = 1
	outcomeIllegalOperator     byte = 2
	outcomeApplyFailed         byte = 3
	outcomeSkippedByDepthLimit byte = 4
	outcomeSkippedByPolicy     byte = 5
	outcomeNotEvaluated        byte = 6
)

// ApplyFailureKind tags.
const (
	applyFailurePreconditionNotMet byte = 0
	applyFailureArgumentMismatch   byte = 1
	applyFailureUnknownOperator    byte = 2
)

// ScoreSource tags.
const (
	scoreSourceUniform      byte = 0
	scoreSourceModelDigest  byte = 1
	scoreSourceUnavailable  byte = 2
)

// TerminationReason tags — contiguous 0..7.
const (
	termGoalReached             byte = 0
	termFrontierExhausted       byte = 1
	termExpansionBudgetExceeded byte = 2
	termDepthBudgetExceeded     byte = 3
	termWorldContractViolation  byte = 4
	termScorerContractViolation byte = 5
	termInternalPanic           byte = 6
	termFrontierInvariant       byte = 7
)

// PanicStage tags.
const (
	panicEnumerateCandidates byte = 0
	panicScoreCandidates     byte = 1
	panicIsGoalRoot          byte = 2
	panicIsGoalExpansion     byte = 3
)

// FrontierInvariantStage tags.
const (
	frontierInvariantPopFromNonEmpty byte = 0
)

// ExpansionNote tags.
const (
	noteCandidateCapReached byte = 0
	noteFrontierPruned      byte = 1
)

func deadEndToTag(r *search.DeadEndReason) byte {
	if r == nil {
		return tagDeadEndNone
	}
	switch *r {
	case search.DeadEndExhaustive:
		return tagDeadEndExhaustive
	case search.DeadEndBudgetLimited:
		return tagDeadEndBudgetLimited
	default:
		return tagDeadEndNone
	}
}

func tagToDeadEnd(tag byte) (*search.DeadEndReason, bool) {
	switch tag {
	case tagDeadEndNone:
		return nil, true
	case tagDeadEndExhaustive:
		r := search.DeadEndExhaustive
		return &r, true
	case tagDeadEndBudgetLimited:
		r := search.DeadEndBudgetLimited
		return &r, true
	default:
		return nil, false
	}
}

func outcomeToTag(kind search.CandidateOutcomeKind) (byte, bool) {
	switch kind {
	case search.OutcomeApplied:
		return outcomeApplied, true
	case search.OutcomeDuplicateSuppressed:
		return outcomeDuplicateSuppressed, true
	case search.OutcomeIllegalOperator:
		return outcomeIllegalOperator, true
	case search.OutcomeApplyFailed:
		return outcomeApplyFailed, true
	case search.OutcomeSkippedByDepthLimit:
		return outcomeSkippedByDepthLimit, true
	case search.OutcomeSkippedByPolicy:
		return outcomeSkippedByPolicy, true
	case search.OutcomeNotEvaluated:
		return outcomeNotEvaluated, true
	default:
		return 0, false
	}
}

func tagToOutcome(tag byte) (search.CandidateOutcomeKind, bool) {
	switch tag {
	case outcomeApplied:
		return search.OutcomeApplied, true
	case outcomeDuplicateSuppressed:
		return search.OutcomeDuplicateSuppressed, true
	case outcomeIllegalOperator:
		return search.OutcomeIllegalOperator, true
	case outcomeApplyFailed:
		return search.OutcomeApplyFailed, true
	case outcomeSkippedByDepthLimit:
		return search.OutcomeSkippedByDepthLimit, true
	case outcomeSkippedByPolicy:
		return search.OutcomeSkippedByPolicy, true
	case outcomeNotEvaluated:
		return search.OutcomeNotEvaluated, true
	default:
		return "", false
	}
}

func applyFailureToTag(kind search.ApplyFailureKind) (byte, bool) {
	switch kind {
	case search.ApplyFailurePreconditionNotMet:
		return applyFailurePreconditionNotMet, true
	case search.ApplyFailureArgumentMismatch:
		return applyFailureArgumentMismatch, true
	case search.ApplyFailureUnknownOperator:
		return applyFailureUnknownOperator, true
	default:
		return 0, false
	}
}

func tagToApplyFailure(tag byte) (search.ApplyFailureKind, bool) {
	switch tag {
	case applyFailurePreconditionNotMet:
		return search.ApplyFailurePreconditionNotMet, true
	case applyFailureArgumentMismatch:
		return search.ApplyFailureArgumentMismatch, true
	case applyFailureUnknownOperator:
		return search.ApplyFailureUnknownOperator, true
	default:
		return "", false
	}
}

func scoreSourceToTag(kind search.ScoreSourceKind) (byte, bool) {
	switch kind {
	case search.ScoreSourceUniform:
		return scoreSourceUniform, true
	case search.ScoreSourceModelDigest:
		return scoreSourceModelDigest, true
	case search.ScoreSourceUnavailable:
		return scoreSourceUnavailable, true
	default:
		return 0, false
	}
}

func tagToScoreSource(tag byte) (search.ScoreSourceKind, bool) {
	switch tag {
	case scoreSourceUniform:
		return search.ScoreSourceUniform, true
	case scoreSourceModelDigest:
		return search.ScoreSourceModelDigest, true
	case scoreSourceUnavailable:
		return search.ScoreSourceUnavailable, true
	default:
		return "", false
	}
}

func terminationToTag(kind search.TerminationReasonKind) (byte, bool) {
	switch kind {
	case search.TerminationGoalReached:
		return termGoalReached, true
	case search.TerminationFrontierExhausted:
		return termFrontierExhausted, true
	case search.TerminationExpansionBudgetExceeded:
		return termExpansionBudgetExceeded, true
	case search.TerminationDepthBudgetExceeded:
		return termDepthBudgetExceeded, true
	case search.TerminationWorldContractViolation:
		return termWorldContractViolation, true
	case search.TerminationScorerContractViolation:
		return termScorerContractViolation, true
	case search.TerminationInternalPanic:
		return termInternalPanic, true
	case search.TerminationFrontierInvariant:
		return termFrontierInvariant, true
	default:
		return 0, false
	}
}

func tagToTermination(tag byte) (search.TerminationReasonKind, bool) {
	switch tag {
	case termGoalReached:
		return search.TerminationGoalReached, true
	case termFrontierExhausted:
		return search.TerminationFrontierExhausted, true
	case termExpansionBudgetExceeded:
		return search.TerminationExpansionBudgetExceeded, true
	case termDepthBudgetExceeded:
		return search.TerminationDepthBudgetExceeded, true
	case termWorldContractViolation:
		return search.TerminationWorldContractViolation, true
	case termScorerContractViolation:
		return search.TerminationScorerContractViolation, true
	case termInternalPanic:
		return search.TerminationInternalPanic, true
	case termFrontierInvariant:
		return search.TerminationFrontierInvariant, true
	default:
		return "", false
	}
}

func panicStageToTag(stage search.PanicStage) (byte, bool) {
	switch stage {
	case search.PanicStageEnumerateCandidates:
		return panicEnumerateCandidates, true
	case search.PanicStageScoreCandidates:
		return panicScoreCandidates, true
	case search.PanicStageIsGoalRoot:
		return panicIsGoalRoot, true
	case search.PanicStageIsGoalExpansion:
		return panicIsGoalExpansion, true
	default:
		return 0, false
	}
}

func tagToPanicStage(tag byte) (search.PanicStage, bool) {
	switch tag {
	case panicEnumerateCandidates:
		return search.PanicStageEnumerateCandidates, true
	case panicScoreCandidates:
		return search.PanicStageScoreCandidates, true
	case panicIsGoalRoot:
		return search.PanicStageIsGoalRoot, true
	case panicIsGoalExpansion:
		return search.PanicStageIsGoalExpansion, true
	default:
		return "", false
	}
}

func frontierInvariantStageToTag(stage search.FrontierInvariantStage) (byte, bool) {
	switch stage {
	case search.FrontierInvariantPopFromNonEmpty:
		return frontierInvariantPopFromNonEmpty, true
	default:
		return 0, false
	}
}

func tagToFrontierInvariantStage(tag byte) (search.FrontierInvariantStage, bool) {
	switch tag {
	case frontierInvariantPopFromNonEmpty:
		return search.FrontierInvariantPopFromNonEmpty, true
	default:
		return "", false
	}
}

// rawHash computes H(domain, parts...) and returns the raw 32-byte digest
// instead of a ContentHash — the tape format's chain links are raw bytes,
// never hex strings.
func rawHash(domain codec.Domain, parts ...[]byte) [32]byte {
	h := codec.Hash(domain, parts...)
	return contentHashToRawMust(h)
}

func contentHashToRawMust(h codec.ContentHash) [32]byte {
	b, err := h.Bytes()
	if err != nil || len(b) != 32 {
		// codec.Hash always produces a valid 64-hex sha256 digest; this path
		// is unreachable for hashes this package computes itself.
		panic("tape: codec.Hash produced a malformed digest")
	}
	var out [32]byte
	copy(out[:], b)
	return out
}

// contentHashToRaw converts a fingerprint ContentHash to raw bytes for wire
// serialization. Unlike the kernel-side ParseContentHash (which is permissive
// of short hex digests), the tape layer enforces the strict sha256/32-byte
// shape at this boundary via ValidateBinary — a short or non-sha256 digest
// elsewhere in the kernel must never silently truncate onto the wire.
func contentHashToRaw(h codec.ContentHash) ([32]byte, *WriteError) {
	if err := h.ValidateBinary(); err != nil {
		if h.Algorithm() != "sha256" {
			return [32]byte{}, &WriteError{Kind: WriteErrUnsupportedHashAlgorithm, Detail: err.Error()}
		}
		return [32]byte{}, &WriteError{Kind: WriteErrInvalidHexDigest, Detail: err.Error()}
	}
	b, err := h.Bytes()
	if err != nil {
		return [32]byte{}, &WriteError{Kind: WriteErrInvalidHexDigest, Detail: err.Error()}
	}
	var out [32]byte
	copy(out[:], b)
	return out, nil
}

func rawToContentHash(raw [32]byte) codec.ContentHash {
	h, err := codec.ParseContentHash("sha256:" + hex.EncodeToString(raw[:]))
	if err != nil {
		panic("tape: hex.EncodeToString produced an unparseable digest")
	}
	return h
}

func rawToHexStr(raw [32]byte) string {
	return hex.EncodeToString(raw[:])
}
