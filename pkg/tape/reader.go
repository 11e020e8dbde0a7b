// Copyright 2025 Certen Protocol
//
// Tape reader: fail-closed binary parsing plus the structural invariants a
// well-formed tape must satisfy (monotonic node/parent ids, a single
// trailing termination record, every "applied" outcome referencing a node
// that actually exists). Grounded on
// original_source/search/src/tape_reader.rs.

package tape

import (
	"encoding/binary"
	"encoding/json"

	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
)

// NodeCreationRecord is a parsed node-creation record.
type NodeCreationRecord struct {
	NodeID           uint64
	ParentID         *uint64
	StateFingerprint [32]byte
	Depth            uint32
	FCost            int64
	CreationOrder    uint64
}

// CandidateOutcomeRecord is a parsed candidate outcome.
type CandidateOutcomeRecord struct {
	Kind                search.CandidateOutcomeKind
	ToNode              uint64
	ExistingFingerprint [32]byte
	ApplyFailureKind    search.ApplyFailureKind
}

// CandidateRecord is a parsed candidate within an expansion record.
type CandidateRecord struct {
	Index         uint64
	OpCodeBytes   [4]byte
	OpArgs        []byte
	CanonicalHash [32]byte
	ScoreBonus    int64
	ScoreSource   search.ScoreSourceKind
	ModelDigest   [32]byte // valid only when ScoreSource == ScoreSourceModelDigest
	Outcome       CandidateOutcomeRecord
}

// NoteRecord is a parsed expansion note.
type NoteRecord struct {
	Kind          search.ExpansionNoteKind
	Cap           uint64
	PrunedNodeIDs []uint64
}

// ExpansionRecord is a parsed expansion record.
type ExpansionRecord struct {
	ExpansionOrder      uint64
	NodeID              uint64
	StateFingerprint    [32]byte
	PopFCost            int64
	PopDepth            uint32
	PopCreationOrder    uint64
	CandidatesTruncated bool
	DeadEndReason       *search.DeadEndReason
	Candidates          []CandidateRecord
	Notes               []NoteRecord
}

// TerminationRecord is the parsed (always-last) termination record.
type TerminationRecord struct {
	Reason            search.TerminationReason
	FrontierHighWater uint64
}

// Record is one frame's parsed content; exactly one of NodeCreation,
// Expansion, or Termination is non-nil, selected by Type.
type Record struct {
	Type         byte
	NodeCreation *NodeCreationRecord
	Expansion    *ExpansionRecord
	Termination  *TerminationRecord
}

// SearchTape is a fully parsed and structurally validated .stap tape.
type SearchTape struct {
	HeaderBytes    []byte
	Header         map[string]any
	Records        []Record
	RecordCount    uint64
	FinalChainHash [32]byte
}

// ReadTape parses and structurally validates a .stap tape. Every failure
// mode is a typed *ParseError — there is no partial-success return.
func ReadTape(data []byte) (*SearchTape, error) {
	if len(data) < MinTapeSize {
		return nil, &ParseError{Kind: ParseErrTooShort}
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return nil, &ParseError{Kind: ParseErrBadMagic}
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != Version {
		return nil, &ParseError{Kind: ParseErrUnsupportedVersion, Got: version}
	}
	headerLen := binary.LittleEndian.Uint32(data[6:10])
	headerStart := 10
	if len(data)-headerStart < int(headerLen)+FooterSize {
		return nil, &ParseError{Kind: ParseErrHeaderTruncated}
	}
	headerBytes := data[headerStart : headerStart+int(headerLen)]
	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, &ParseError{Kind: ParseErrInvalidHeaderJSON, Detail: err.Error()}
	}

	chainHash := rawHash(codec.DomainSearchTape, headerBytes)
	footerStart := len(data) - FooterSize
	pos := headerStart + int(headerLen)

	var records []Record
	var recordIndex uint64
	for pos < footerStart {
		if footerStart-pos < 4 {
			return nil, &ParseError{Kind: ParseErrRecordTruncated, RecordIndex: recordIndex}
		}
		frameLen := binary.LittleEndian.Uint32(data[pos : pos+4])
		frameBodyStart := pos + 4
		if footerStart-frameBodyStart < int(frameLen) {
			return nil, &ParseError{Kind: ParseErrRecordTruncated, RecordIndex: recordIndex}
		}
		frameBody := data[frameBodyStart : frameBodyStart+int(frameLen)]
		fullFrame := data[pos : frameBodyStart+int(frameLen)]

		if len(frameBody) < 1 {
			return nil, &ParseError{Kind: ParseErrRecordTruncated, RecordIndex: recordIndex}
		}
		recordType := frameBody[0]
		fc := &cursor{data: frameBody[1:]}

		var rec Record
		var err error
		switch recordType {
		case RecordTypeNodeCreation:
			var nc *NodeCreationRecord
			nc, err = parseNodeCreation(fc, recordIndex)
			rec = Record{Type: recordType, NodeCreation: nc}
		case RecordTypeExpansion:
			var ex *ExpansionRecord
			ex, err = parseExpansion(fc, recordIndex)
			rec = Record{Type: recordType, Expansion: ex}
		case RecordTypeTermination:
			var tm *TerminationRecord
			tm, err = parseTermination(fc, recordIndex)
			rec = Record{Type: recordType, Termination: tm}
		default:
			return nil, &ParseError{Kind: ParseErrUnknownRecordType, RecordIndex: recordIndex, Tag: recordType}
		}
		if err != nil {
			return nil, err
		}
		if fc.remaining() > 0 {
			return nil, &ParseError{Kind: ParseErrFrameBodyNotFullyConsumed, RecordIndex: recordIndex, Excess: fc.remaining()}
		}

		chainHash = rawHash(codec.DomainSearchTapeChain, chainHash[:], fullFrame)
		records = append(records, rec)
		recordIndex++
		pos = frameBodyStart + int(frameLen)
		// A complete footer right after the termination record, with bytes
		// still following it, means the input carries trailing bytes.
		if recordType == RecordTypeTermination && len(data)-pos > FooterSize &&
			string(data[pos+FooterSize-4:pos+FooterSize]) == string(FooterMagic[:]) {
			return nil, &ParseError{Kind: ParseErrTrailingBytes, Excess: len(data) - (pos + FooterSize)}
		}
	}

	footerRecordCount := binary.LittleEndian.Uint64(data[footerStart : footerStart+8])
	var footerChainHash [32]byte
	copy(footerChainHash[:], data[footerStart+8:footerStart+40])
	footerMagicBytes := data[footerStart+40 : footerStart+44]
	if footerMagicBytes[0] != FooterMagic[0] || footerMagicBytes[1] != FooterMagic[1] ||
		footerMagicBytes[2] != FooterMagic[2] || footerMagicBytes[3] != FooterMagic[3] {
		return nil, &ParseError{Kind: ParseErrBadFooterMagic}
	}
	if len(data) > footerStart+FooterSize {
		return nil, &ParseError{Kind: ParseErrTrailingBytes, Excess: len(data) - (footerStart + FooterSize)}
	}
	if footerRecordCount != uint64(len(records)) {
		return nil, &ParseError{Kind: ParseErrRecordCountMismatch, Want: footerRecordCount, Actual: uint64(len(records))}
	}
	if footerChainHash != chainHash {
		return nil, &ParseError{Kind: ParseErrChainHashMismatch}
	}

	if err := validateStructuralInvariants(records); err != nil {
		return nil, err
	}

	return &SearchTape{
		HeaderBytes:    headerBytes,
		Header:         header,
		Records:        records,
		RecordCount:    footerRecordCount,
		FinalChainHash: footerChainHash,
	}, nil
}

func validateStructuralInvariants(records []Record) error {
	nodeIDs := make(map[uint64]bool)
	var terminationIndex = -1
	var expansionOrderSeen bool
	var previousExpansionOrder uint64

	for i, r := range records {
		switch r.Type {
		case RecordTypeNodeCreation:
			nc := r.NodeCreation
			if nodeIDs[nc.NodeID] {
				return &ParseError{Kind: ParseErrDuplicateNodeID, NodeID: nc.NodeID}
			}
			if nc.ParentID != nil && *nc.ParentID >= nc.NodeID {
				return &ParseError{Kind: ParseErrNonMonotonicParentID, NodeID: nc.NodeID, ParentID: *nc.ParentID}
			}
			nodeIDs[nc.NodeID] = true
		case RecordTypeExpansion:
			ex := r.Expansion
			if expansionOrderSeen && ex.ExpansionOrder <= previousExpansionOrder {
				return &ParseError{
					Kind: ParseErrNonMonotonicExpansionOrder, RecordIndex: uint64(i),
					Previous: previousExpansionOrder, Current: ex.ExpansionOrder,
				}
			}
			expansionOrderSeen = true
			previousExpansionOrder = ex.ExpansionOrder
			for _, c := range ex.Candidates {
				if c.Outcome.Kind == search.OutcomeApplied && !nodeIDs[c.Outcome.ToNode] {
					return &ParseError{Kind: ParseErrInvalidAppliedNodeRef, RecordIndex: uint64(i), NodeID: c.Outcome.ToNode}
				}
			}
		case RecordTypeTermination:
			if terminationIndex != -1 {
				return &ParseError{Kind: ParseErrDuplicateTermination, RecordIndex: uint64(i)}
			}
			terminationIndex = i
		}
	}

	if terminationIndex == -1 {
		return &ParseError{Kind: ParseErrMissingTermination}
	}
	if terminationIndex != len(records)-1 {
		return &ParseError{Kind: ParseErrTerminationNotLast, RecordIndex: uint64(terminationIndex)}
	}
	return nil
}

func parseNodeCreation(c *cursor, recordIndex uint64) (*NodeCreationRecord, error) {
	nodeID, ok := c.readU64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "node_creation.node_id")
	}
	presence, ok := c.readU8()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "node_creation.parent_id_present")
	}
	var parentID *uint64
	switch presence {
	case 0x00:
	case 0x01:
		v, ok := c.readU64()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "node_creation.parent_id")
		}
		parentID = &v
	default:
		return nil, &ParseError{Kind: ParseErrInvalidParentPresenceFlag, RecordIndex: recordIndex, Flag: presence}
	}
	fp, ok := c.readBytes(32)
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "node_creation.state_fingerprint")
	}
	depth, ok := c.readU32()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "node_creation.depth")
	}
	fCost, ok := c.readI64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "node_creation.f_cost")
	}
	creationOrder, ok := c.readU64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "node_creation.creation_order")
	}
	var fpArr [32]byte
	copy(fpArr[:], fp)
	return &NodeCreationRecord{
		NodeID: nodeID, ParentID: parentID, StateFingerprint: fpArr,
		Depth: depth, FCost: fCost, CreationOrder: creationOrder,
	}, nil
}

func parseExpansion(c *cursor, recordIndex uint64) (*ExpansionRecord, error) {
	expansionOrder, ok := c.readU64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.expansion_order")
	}
	nodeID, ok := c.readU64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.node_id")
	}
	fp, ok := c.readBytes(32)
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.state_fingerprint")
	}
	popFCost, ok := c.readI64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.pop_f_cost")
	}
	popDepth, ok := c.readU32()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.pop_depth")
	}
	popCreationOrder, ok := c.readU64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.pop_creation_order")
	}
	truncatedByte, ok := c.readU8()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.candidates_truncated")
	}
	deadEndTag, ok := c.readU8()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.dead_end_reason")
	}
	deadEndReason, ok := tagToDeadEnd(deadEndTag)
	if !ok {
		return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "dead_end_reason", Tag: deadEndTag}
	}
	candidateCount, ok := c.readU32()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.candidate_count")
	}
	candidates := make([]CandidateRecord, 0, candidateCount)
	for i := uint32(0); i < candidateCount; i++ {
		cand, err := parseCandidate(c, recordIndex)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *cand)
	}
	noteCount, ok := c.readU32()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "expansion.note_count")
	}
	notes := make([]NoteRecord, 0, noteCount)
	for i := uint32(0); i < noteCount; i++ {
		note, err := parseNote(c, recordIndex)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *note)
	}

	var fpArr [32]byte
	copy(fpArr[:], fp)
	return &ExpansionRecord{
		ExpansionOrder: expansionOrder, NodeID: nodeID, StateFingerprint: fpArr,
		PopFCost: popFCost, PopDepth: popDepth, PopCreationOrder: popCreationOrder,
		CandidatesTruncated: truncatedByte != 0, DeadEndReason: deadEndReason,
		Candidates: candidates, Notes: notes,
	}, nil
}

func parseCandidate(c *cursor, recordIndex uint64) (*CandidateRecord, error) {
	index, ok := c.readU64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.index")
	}
	opCodeBytes, ok := c.readBytes(4)
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.op_code")
	}
	opArgsLen, ok := c.readU16()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.op_args_len")
	}
	opArgs, ok := c.readBytes(int(opArgsLen))
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.op_args")
	}
	canonicalHash, ok := c.readBytes(32)
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.canonical_hash")
	}
	scoreBonus, ok := c.readI64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.score_bonus")
	}
	scoreSourceTag, ok := c.readU8()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.score_source")
	}
	scoreSource, ok := tagToScoreSource(scoreSourceTag)
	if !ok {
		return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "score_source", Tag: scoreSourceTag}
	}
	var modelDigest [32]byte
	if scoreSource == search.ScoreSourceModelDigest {
		d, ok := c.readBytes(32)
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "candidate.model_digest")
		}
		copy(modelDigest[:], d)
	}
	outcomeTag, ok := c.readU8()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "candidate.outcome")
	}
	outcome, err := parseOutcome(c, outcomeTag, recordIndex)
	if err != nil {
		return nil, err
	}

	var opCodeArr [4]byte
	copy(opCodeArr[:], opCodeBytes)
	var canonicalArr [32]byte
	copy(canonicalArr[:], canonicalHash)

	return &CandidateRecord{
		Index: index, OpCodeBytes: opCodeArr, OpArgs: append([]byte(nil), opArgs...),
		CanonicalHash: canonicalArr, ScoreBonus: scoreBonus, ScoreSource: scoreSource,
		ModelDigest: modelDigest, Outcome: *outcome,
	}, nil
}

func parseOutcome(c *cursor, tag byte, recordIndex uint64) (*CandidateOutcomeRecord, error) {
	kind, ok := tagToOutcome(tag)
	if !ok {
		return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "candidate_outcome", Tag: tag}
	}
	switch kind {
	case search.OutcomeApplied:
		toNode, ok := c.readU64()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "outcome.to_node")
		}
		return &CandidateOutcomeRecord{Kind: kind, ToNode: toNode}, nil
	case search.OutcomeDuplicateSuppressed:
		fp, ok := c.readBytes(32)
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "outcome.fingerprint")
		}
		var fpArr [32]byte
		copy(fpArr[:], fp)
		return &CandidateOutcomeRecord{Kind: kind, ExistingFingerprint: fpArr}, nil
	case search.OutcomeApplyFailed:
		kindTag, ok := c.readU8()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "outcome.apply_failure_kind")
		}
		afKind, ok := tagToApplyFailure(kindTag)
		if !ok {
			return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "apply_failure_kind", Tag: kindTag}
		}
		return &CandidateOutcomeRecord{Kind: kind, ApplyFailureKind: afKind}, nil
	default:
		return &CandidateOutcomeRecord{Kind: kind}, nil
	}
}

func parseNote(c *cursor, recordIndex uint64) (*NoteRecord, error) {
	tag, ok := c.readU8()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "note.tag")
	}
	switch tag {
	case noteCandidateCapReached:
		cap, ok := c.readU64()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "note.cap")
		}
		return &NoteRecord{Kind: search.NoteCandidateCapReached, Cap: cap}, nil
	case noteFrontierPruned:
		count, ok := c.readU32()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "note.pruned_count")
		}
		ids := make([]uint64, 0, count)
		for i := uint32(0); i < count; i++ {
			id, ok := c.readU64()
			if !ok {
				return nil, recordBodyTruncated(recordIndex, "note.pruned_node_id")
			}
			ids = append(ids, id)
		}
		return &NoteRecord{Kind: search.NoteFrontierPruned, PrunedNodeIDs: ids}, nil
	default:
		return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "expansion_note", Tag: tag}
	}
}

func parseTermination(c *cursor, recordIndex uint64) (*TerminationRecord, error) {
	tag, ok := c.readU8()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "termination.tag")
	}
	kind, ok := tagToTermination(tag)
	if !ok {
		return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "termination_reason", Tag: tag}
	}
	reason := search.TerminationReason{Kind: kind}
	switch kind {
	case search.TerminationGoalReached:
		nodeID, ok := c.readU64()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "termination.node_id")
		}
		reason.NodeID = nodeID
	case search.TerminationScorerContractViolation:
		expected, ok := c.readU64()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "termination.expected")
		}
		actual, ok := c.readU64()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "termination.actual")
		}
		reason.Expected, reason.Actual = expected, actual
	case search.TerminationInternalPanic:
		stageTag, ok := c.readU8()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "termination.panic_stage")
		}
		stage, ok := tagToPanicStage(stageTag)
		if !ok {
			return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "panic_stage", Tag: stageTag}
		}
		reason.PanicStage = stage
	case search.TerminationFrontierInvariant:
		stageTag, ok := c.readU8()
		if !ok {
			return nil, recordBodyTruncated(recordIndex, "termination.frontier_stage")
		}
		stage, ok := tagToFrontierInvariantStage(stageTag)
		if !ok {
			return nil, &ParseError{Kind: ParseErrUnknownEnumTag, RecordIndex: recordIndex, Field: "frontier_invariant_stage", Tag: stageTag}
		}
		reason.FrontierInvariantStage = stage
	}
	frontierHighWater, ok := c.readU64()
	if !ok {
		return nil, recordBodyTruncated(recordIndex, "termination.frontier_high_water")
	}
	return &TerminationRecord{Reason: reason, FrontierHighWater: frontierHighWater}, nil
}

func recordBodyTruncated(recordIndex uint64, field string) error {
	return &ParseError{Kind: ParseErrRecordBodyTruncated, RecordIndex: recordIndex, Field: field}
}

// cursor is a bounded byte reader — every parse function operates on a
// cursor scoped to exactly one frame's body, so a malformed record can
// never read past its own frame boundary.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) readBytes(n int) ([]byte, bool) {
	if c.pos+n > len(c.data) {
		return nil, false
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, true
}

func (c *cursor) readU8() (byte, bool) {
	b, ok := c.readBytes(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (c *cursor) readU16() (uint16, bool) {
	b, ok := c.readBytes(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (c *cursor) readU32() (uint32, bool) {
	b, ok := c.readBytes(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (c *cursor) readU64() (uint64, bool) {
	b, ok := c.readBytes(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (c *cursor) readI64() (int64, bool) {
	v, ok := c.readU64()
	return int64(v), ok
}
