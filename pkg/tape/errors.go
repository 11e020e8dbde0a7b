// Copyright 2025 Certen Protocol

package tape

import "fmt"

// WriteError is the typed error family for tape-writing failures.
type WriteError struct {
	Kind   string
	Len    int
	Detail string
}

const (
	WriteErrOpArgsTooLong           = "op_args_too_long"
	WriteErrUnsupportedHashAlgorithm = "unsupported_hash_algorithm"
	WriteErrInvalidHexDigest        = "invalid_hex_digest"
	WriteErrCanonError              = "canon_error"
	WriteErrAlreadyTerminated       = "already_terminated"
	WriteErrNotTerminated           = "not_terminated"
)

func (e *WriteError) Error() string {
	switch e.Kind {
	case WriteErrOpArgsTooLong:
		return fmt.Sprintf("tape: op_args length %d exceeds u16 maximum", e.Len)
	case WriteErrUnsupportedHashAlgorithm:
		return fmt.Sprintf("tape: unsupported hash algorithm: %s", e.Detail)
	case WriteErrInvalidHexDigest:
		return fmt.Sprintf("tape: invalid hex digest: %s", e.Detail)
	case WriteErrCanonError:
		return fmt.Sprintf("tape: canonicalization failed: %s", e.Detail)
	case WriteErrAlreadyTerminated:
		return "tape: write attempted after termination record"
	case WriteErrNotTerminated:
		return "tape: finish called before a termination record was written"
	default:
		return fmt.Sprintf("tape: write error (%s): %s", e.Kind, e.Detail)
	}
}

// ParseError is the typed, fail-closed error family for tape-reading
// failures. Every field the relevant Kind needs is populated; the rest are
// left zero.
type ParseError struct {
	Kind          string
	RecordIndex   uint64
	Field         string
	Tag           byte
	Got           uint16
	Want          uint64
	Actual        uint64
	NodeID        uint64
	ParentID      uint64
	Previous      uint64
	Current       uint64
	Excess        int
	Flag          byte
	Detail        string
}

const (
	ParseErrTooShort                   = "too_short"
	ParseErrBadMagic                   = "bad_magic"
	ParseErrUnsupportedVersion         = "unsupported_version"
	ParseErrHeaderTruncated            = "header_truncated"
	ParseErrInvalidHeaderJSON          = "invalid_header_json"
	ParseErrRecordTruncated            = "record_truncated"
	ParseErrUnknownRecordType          = "unknown_record_type"
	ParseErrUnknownEnumTag             = "unknown_enum_tag"
	ParseErrRecordBodyTruncated        = "record_body_truncated"
	ParseErrBadFooterMagic             = "bad_footer_magic"
	ParseErrRecordCountMismatch        = "record_count_mismatch"
	ParseErrChainHashMismatch          = "chain_hash_mismatch"
	ParseErrTrailingBytes              = "trailing_bytes"
	ParseErrDuplicateNodeID            = "duplicate_node_id"
	ParseErrInvalidAppliedNodeRef      = "invalid_applied_node_ref"
	ParseErrNonMonotonicParentID       = "non_monotonic_parent_id"
	ParseErrNonMonotonicExpansionOrder = "non_monotonic_expansion_order"
	ParseErrTerminationNotLast         = "termination_not_last"
	ParseErrMissingTermination         = "missing_termination"
	ParseErrDuplicateTermination       = "duplicate_termination"
	ParseErrFrameBodyNotFullyConsumed  = "frame_body_not_fully_consumed"
	ParseErrDanglingParentLink         = "dangling_parent_link"
	ParseErrInvalidParentPresenceFlag  = "invalid_parent_presence_flag"
	ParseErrInvalidHexDigest           = "invalid_hex_digest"
)

func (e *ParseError) Error() string {
	switch e.Kind {
	case ParseErrTooShort:
		return "tape: input shorter than the minimum possible tape"
	case ParseErrBadMagic:
		return "tape: bad magic bytes"
	case ParseErrUnsupportedVersion:
		return fmt.Sprintf("tape: unsupported version %d", e.Got)
	case ParseErrHeaderTruncated:
		return "tape: header truncated"
	case ParseErrInvalidHeaderJSON:
		return fmt.Sprintf("tape: invalid header JSON: %s", e.Detail)
	case ParseErrRecordTruncated:
		return fmt.Sprintf("tape: record %d truncated", e.RecordIndex)
	case ParseErrUnknownRecordType:
		return fmt.Sprintf("tape: record %d has unknown record type tag 0x%02x", e.RecordIndex, e.Tag)
	case ParseErrUnknownEnumTag:
		return fmt.Sprintf("tape: record %d field %q has unknown tag 0x%02x", e.RecordIndex, e.Field, e.Tag)
	case ParseErrRecordBodyTruncated:
		return fmt.Sprintf("tape: record %d body truncated reading %s", e.RecordIndex, e.Field)
	case ParseErrBadFooterMagic:
		return "tape: bad footer magic"
	case ParseErrRecordCountMismatch:
		return fmt.Sprintf("tape: footer record_count %d != actual %d", e.Want, e.Actual)
	case ParseErrChainHashMismatch:
		return "tape: final chain hash does not match the footer's recorded value"
	case ParseErrTrailingBytes:
		return fmt.Sprintf("tape: %d trailing bytes after the footer", e.Excess)
	case ParseErrDuplicateNodeID:
		return fmt.Sprintf("tape: duplicate node_id %d", e.NodeID)
	case ParseErrInvalidAppliedNodeRef:
		return fmt.Sprintf("tape: record %d applied outcome references unknown node %d", e.RecordIndex, e.NodeID)
	case ParseErrNonMonotonicParentID:
		return fmt.Sprintf("tape: node %d has parent_id %d >= node_id", e.NodeID, e.ParentID)
	case ParseErrNonMonotonicExpansionOrder:
		return fmt.Sprintf("tape: record %d expansion_order %d does not exceed previous %d", e.RecordIndex, e.Current, e.Previous)
	case ParseErrTerminationNotLast:
		return fmt.Sprintf("tape: termination record at index %d is not the last record", e.RecordIndex)
	case ParseErrMissingTermination:
		return "tape: no termination record present"
	case ParseErrDuplicateTermination:
		return fmt.Sprintf("tape: duplicate termination record at index %d", e.RecordIndex)
	case ParseErrFrameBodyNotFullyConsumed:
		return fmt.Sprintf("tape: record %d left %d unconsumed body bytes", e.RecordIndex, e.Excess)
	case ParseErrDanglingParentLink:
		return fmt.Sprintf("tape: node %d's parent_id %d is not a known node", e.NodeID, e.ParentID)
	case ParseErrInvalidParentPresenceFlag:
		return fmt.Sprintf("tape: record %d has invalid parent-presence flag 0x%02x", e.RecordIndex, e.Flag)
	case ParseErrInvalidHexDigest:
		return fmt.Sprintf("tape: invalid hex digest: %s", e.Detail)
	default:
		return fmt.Sprintf("tape: parse error (%s): %s", e.Kind, e.Detail)
	}
}
