// Copyright 2025 Certen Protocol
//
// TapeWriter implements search.Sink: every event search.Run emits is
// framed, chained, and appended to an in-memory buffer. Graph and tape are
// produced from the exact same callback sequence — the tape is never
// recomputed from a finished Graph (spec.md §4.4/§4.5).
//
// Errors encountered mid-write (an oversized op_args blob, a candidate
// hash that isn't a valid sha256 digest) are sticky: the offending Sink
// method becomes a no-op and the error surfaces at Finish. This mirrors
// the Rust TapeWriter's error handling without forcing search.Sink's
// fire-and-forget interface to grow error returns.
package tape

import (
	"encoding/binary"
	"math"

	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
)

// TapeOutput is the result of a successful Finish call.
type TapeOutput struct {
	Bytes          []byte
	FinalChainHash [32]byte
	RecordCount    uint64
}

// TapeWriter accumulates a .stap tape from search.Sink callbacks.
type TapeWriter struct {
	buf         []byte
	chainHash   [32]byte
	recordCount uint64
	terminated  bool
	err         *WriteError
}

// NewTapeWriter seeds the tape with its canonical JSON header and returns a
// writer ready to receive search.Sink callbacks.
func NewTapeWriter(headerJSONBytes []byte) *TapeWriter {
	w := &TapeWriter{}
	w.buf = make([]byte, 0, 4+2+4+len(headerJSONBytes))
	w.buf = append(w.buf, Magic[:]...)
	w.buf = appendU16LE(w.buf, Version)
	w.buf = appendU32LE(w.buf, uint32(len(headerJSONBytes)))
	w.buf = append(w.buf, headerJSONBytes...)
	w.chainHash = rawHash(codec.DomainSearchTape, headerJSONBytes)
	return w
}

// Err returns the sticky write error, if any Sink callback has failed.
func (w *TapeWriter) Err() error {
	if w.err == nil {
		return nil
	}
	return w.err
}

func (w *TapeWriter) fail(err *WriteError) {
	if w.err == nil {
		w.err = err
	}
}

// OnNodeCreated implements search.Sink.
func (w *TapeWriter) OnNodeCreated(node search.SearchNode) {
	if w.err != nil {
		return
	}
	if w.terminated {
		w.fail(&WriteError{Kind: WriteErrAlreadyTerminated})
		return
	}
	body, err := buildNodeCreationBody(node)
	if err != nil {
		w.fail(err)
		return
	}
	w.commitRecord(RecordTypeNodeCreation, body)
}

// OnExpansion implements search.Sink.
func (w *TapeWriter) OnExpansion(event search.ExpandEvent) {
	if w.err != nil {
		return
	}
	if w.terminated {
		w.fail(&WriteError{Kind: WriteErrAlreadyTerminated})
		return
	}
	body, err := buildExpansionBody(event)
	if err != nil {
		w.fail(err)
		return
	}
	w.commitRecord(RecordTypeExpansion, body)
}

// OnTermination implements search.Sink.
func (w *TapeWriter) OnTermination(reason search.TerminationReason, frontierHighWater uint64) {
	if w.err != nil {
		return
	}
	if w.terminated {
		w.fail(&WriteError{Kind: WriteErrAlreadyTerminated})
		return
	}
	body, err := buildTerminationBody(reason, frontierHighWater)
	if err != nil {
		w.fail(err)
		return
	}
	w.commitRecord(RecordTypeTermination, body)
	w.terminated = true
}

// Finish appends the footer and returns the complete tape. Returns
// WriteErrNotTerminated if OnTermination was never called, or the sticky
// error from an earlier failed Sink callback.
func (w *TapeWriter) Finish() (TapeOutput, error) {
	if w.err != nil {
		return TapeOutput{}, w.err
	}
	if !w.terminated {
		return TapeOutput{}, &WriteError{Kind: WriteErrNotTerminated}
	}
	w.buf = appendU64LE(w.buf, w.recordCount)
	w.buf = append(w.buf, w.chainHash[:]...)
	w.buf = append(w.buf, FooterMagic[:]...)
	return TapeOutput{Bytes: w.buf, FinalChainHash: w.chainHash, RecordCount: w.recordCount}, nil
}

// commitRecord frames body as [frame_len:u32le][record_type:u8][body...],
// advances the chain hash over the complete frame, and increments
// record_count. frame_len excludes itself but includes the type byte.
func (w *TapeWriter) commitRecord(recordType byte, body []byte) {
	frameLen := 1 + len(body)
	frameStart := len(w.buf)
	w.buf = appendU32LE(w.buf, uint32(frameLen))
	w.buf = append(w.buf, recordType)
	w.buf = append(w.buf, body...)
	frame := w.buf[frameStart:]
	w.chainHash = rawHash(codec.DomainSearchTapeChain, w.chainHash[:], frame)
	w.recordCount++
}

func buildNodeCreationBody(node search.SearchNode) ([]byte, *WriteError) {
	fpRaw, err := contentHashToRaw(node.StateFingerprint)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 8+1+8+32+4+8+8)
	buf = appendU64LE(buf, node.NodeID)
	if node.ParentID != nil {
		buf = append(buf, 0x01)
		buf = appendU64LE(buf, *node.ParentID)
	} else {
		buf = append(buf, 0x00)
	}
	buf = append(buf, fpRaw[:]...)
	buf = appendU32LE(buf, node.Depth)
	buf = appendI64LE(buf, node.FCost())
	buf = appendU64LE(buf, node.CreationOrder)
	return buf, nil
}

func buildExpansionBody(event search.ExpandEvent) ([]byte, *WriteError) {
	fpRaw, err := fingerprintHexToRaw(event.StateFingerprint)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 256)
	buf = appendU64LE(buf, event.ExpansionOrder)
	buf = appendU64LE(buf, event.NodeID)
	buf = append(buf, fpRaw[:]...)
	buf = appendI64LE(buf, event.FrontierPopKey.FCost)
	buf = appendU32LE(buf, event.FrontierPopKey.Depth)
	buf = appendU64LE(buf, event.FrontierPopKey.CreationOrder)
	buf = appendBool(buf, event.CandidatesTruncated)
	buf = append(buf, deadEndToTag(event.DeadEndReason))
	buf = appendU32LE(buf, uint32(len(event.Candidates)))
	for _, c := range event.Candidates {
		cb, err := buildCandidateBody(c)
		if err != nil {
			return nil, err
		}
		buf = append(buf, cb...)
	}
	buf = appendU32LE(buf, uint32(len(event.Notes)))
	for _, n := range event.Notes {
		buf = append(buf, buildNoteBody(n)...)
	}
	return buf, nil
}

func buildCandidateBody(r search.CandidateRecord) ([]byte, *WriteError) {
	if len(r.Action.OpArgs) > math.MaxUint16 {
		return nil, &WriteError{Kind: WriteErrOpArgsTooLong, Len: len(r.Action.OpArgs)}
	}
	canonicalRaw, werr := canonicalHashToRaw(r.Action.CanonicalHash)
	if werr != nil {
		return nil, werr
	}

	buf := make([]byte, 0, 64+len(r.Action.OpArgs))
	buf = appendU64LE(buf, r.Index)
	opCode := r.Action.OpCode.Bytes()
	buf = append(buf, opCode[:]...)
	buf = appendU16LE(buf, uint16(len(r.Action.OpArgs)))
	buf = append(buf, r.Action.OpArgs...)
	buf = append(buf, canonicalRaw[:]...)
	buf = appendI64LE(buf, r.Score.Bonus)

	sourceTag, ok := scoreSourceToTag(r.Score.Source.Kind)
	if !ok {
		return nil, &WriteError{Kind: WriteErrCanonError, Detail: "unknown score source kind"}
	}
	buf = append(buf, sourceTag)
	if r.Score.Source.Kind == search.ScoreSourceModelDigest {
		digestRaw, werr := canonicalHashToRaw(r.Score.Source.ModelDigest)
		if werr != nil {
			return nil, werr
		}
		buf = append(buf, digestRaw[:]...)
	}

	outcomeTag, ok := outcomeToTag(r.Outcome.Kind)
	if !ok {
		return nil, &WriteError{Kind: WriteErrCanonError, Detail: "unknown candidate outcome kind"}
	}
	buf = append(buf, outcomeTag)
	payload, werr := buildOutcomePayload(r.Outcome)
	if werr != nil {
		return nil, werr
	}
	buf = append(buf, payload...)
	return buf, nil
}

func buildOutcomePayload(o search.CandidateOutcome) ([]byte, *WriteError) {
	switch o.Kind {
	case search.OutcomeApplied:
		return appendU64LE(nil, o.ToNode), nil
	case search.OutcomeDuplicateSuppressed:
		fpRaw, err := fingerprintHexToRaw(o.ExistingFingerprint)
		if err != nil {
			return nil, err
		}
		return fpRaw[:], nil
	case search.OutcomeApplyFailed:
		tag, ok := applyFailureToTag(o.ApplyFailureKind)
		if !ok {
			return nil, &WriteError{Kind: WriteErrCanonError, Detail: "unknown apply failure kind"}
		}
		return []byte{tag}, nil
	default:
		// IllegalOperator, SkippedByDepthLimit, SkippedByPolicy, NotEvaluated
		// carry no payload.
		return nil, nil
	}
}

func buildNoteBody(n search.ExpansionNote) []byte {
	switch n.Kind {
	case search.NoteCandidateCapReached:
		buf := []byte{noteCandidateCapReached}
		return appendU64LE(buf, n.Cap)
	case search.NoteFrontierPruned:
		buf := []byte{noteFrontierPruned}
		buf = appendU32LE(buf, uint32(len(n.PrunedNodeIDs)))
		for _, id := range n.PrunedNodeIDs {
			buf = appendU64LE(buf, id)
		}
		return buf
	default:
		// ExpansionNoteKind is a closed two-variant set; unreachable for any
		// note search.Run actually produces.
		return nil
	}
}

func buildTerminationBody(reason search.TerminationReason, frontierHighWater uint64) ([]byte, *WriteError) {
	tag, ok := terminationToTag(reason.Kind)
	if !ok {
		return nil, &WriteError{Kind: WriteErrCanonError, Detail: "unknown termination reason kind"}
	}
	buf := []byte{tag}
	switch reason.Kind {
	case search.TerminationGoalReached:
		buf = appendU64LE(buf, reason.NodeID)
	case search.TerminationScorerContractViolation:
		buf = appendU64LE(buf, reason.Expected)
		buf = appendU64LE(buf, reason.Actual)
	case search.TerminationInternalPanic:
		stageTag, ok := panicStageToTag(reason.PanicStage)
		if !ok {
			return nil, &WriteError{Kind: WriteErrCanonError, Detail: "unknown panic stage"}
		}
		buf = append(buf, stageTag)
	case search.TerminationFrontierInvariant:
		stageTag, ok := frontierInvariantStageToTag(reason.FrontierInvariantStage)
		if !ok {
			return nil, &WriteError{Kind: WriteErrCanonError, Detail: "unknown frontier invariant stage"}
		}
		buf = append(buf, stageTag)
	}
	buf = appendU64LE(buf, frontierHighWater)
	return buf, nil
}

// canonicalHashToRaw accepts either a full "<algo>:<hex>" content hash or a
// bare 64-char sha256 hex digest — search.CandidateAction.CanonicalHash is
// documented only as "hex digest", so both producer styles are accepted
// here; either way the wire format stores 32 raw bytes.
func canonicalHashToRaw(s string) ([32]byte, *WriteError) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			h, err := codec.ParseContentHash(s)
			if err != nil {
				return [32]byte{}, &WriteError{Kind: WriteErrInvalidHexDigest, Detail: err.Error()}
			}
			return contentHashToRaw(h)
		}
	}
	return fingerprintHexToRaw(s)
}

func fingerprintHexToRaw(hexDigest string) ([32]byte, *WriteError) {
	h, err := codec.ParseContentHash("sha256:" + hexDigest)
	if err != nil {
		return [32]byte{}, &WriteError{Kind: WriteErrInvalidHexDigest, Detail: err.Error()}
	}
	return contentHashToRaw(h)
}

func appendU16LE(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32LE(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64LE(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendI64LE(buf []byte, v int64) []byte {
	return appendU64LE(buf, uint64(v))
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 0x01)
	}
	return append(buf, 0x00)
}
