// Copyright 2025 Certen Protocol
//
// ToolTranscript — a human/tool-readable rendering of the winning path's
// operator invocations, derived from the same search tape pkg/witness
// replays. Supplements spec.md (SPEC_FULL.md §4): codebreak's
// tool_transcript_equivalence_v1 evidence obligation exercises bundle
// verifier step 22's transcript binding end to end.
// Grounded on original_source/tests/lock/tests/tool_transcript.rs, which
// exercises tool_transcript.json's schema ("schema_version",
// "txn_epoch", "world_id", "entries", "entry_count") against a running
// kernel; this package only renders the JSON shape that test suite reads.
package transcript

import (
	"encoding/hex"
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
	"github.com/certen/sterling/pkg/tape"
)

// SchemaVersion is the transcript artifact's schema_version field.
const SchemaVersion = "tool_transcript.v1"

// Entry is one replayed operator invocation.
type Entry struct {
	StepIndex int
	Operator  string
	OpCode    carrier.Code32
	Args      []byte
	Outcome   string // always "applied": the transcript only records the winning path
}

// ToolTranscript is the rendered winning-path operator log for one world_id.
type ToolTranscript struct {
	WorldID  string
	TxnEpoch int
	Entries  []Entry
}

// OperatorName maps an op code to its display name for the transcript; the
// zero value renders as the op code's own string form.
type OperatorName func(carrier.Code32) string

// Render walks t's winning path (the same NodeCreation/Expansion records
// pkg/witness replays) and produces the operator-invocation transcript for
// world worldID. txnEpoch is the world's own epoch counter (codebreak
// always uses 0, matching the original's single-transaction-epoch worlds).
func Render(t *tape.SearchTape, worldID string, txnEpoch int, nameOf OperatorName) (*ToolTranscript, error) {
	if nameOf == nil {
		nameOf = func(c carrier.Code32) string { return c.String() }
	}
	goalNodeID, ok := findGoal(t)
	if !ok {
		return &ToolTranscript{WorldID: worldID, TxnEpoch: txnEpoch}, nil
	}

	path, err := reconstructPath(t, goalNodeID)
	if err != nil {
		return nil, err
	}

	expansionByNode := make(map[uint64]*tape.ExpansionRecord, len(t.Records))
	for i := range t.Records {
		r := &t.Records[i]
		if r.Type == tape.RecordTypeExpansion {
			expansionByNode[r.Expansion.NodeID] = r.Expansion
		}
	}

	entries := make([]Entry, 0, len(path))
	for i := 0; i < len(path)-1; i++ {
		parent, child := path[i], path[i+1]
		expansion, ok := expansionByNode[parent]
		if !ok {
			continue
		}
		for _, c := range expansion.Candidates {
			if c.Outcome.Kind == search.OutcomeApplied && c.Outcome.ToNode == child {
				opCode := carrier.Code32FromBytes(c.OpCodeBytes)
				entries = append(entries, Entry{
					StepIndex: i,
					Operator:  nameOf(opCode),
					OpCode:    opCode,
					Args:      append([]byte(nil), c.OpArgs...),
					Outcome:   "applied",
				})
				break
			}
		}
	}

	return &ToolTranscript{WorldID: worldID, TxnEpoch: txnEpoch, Entries: entries}, nil
}

func findGoal(t *tape.SearchTape) (uint64, bool) {
	for _, r := range t.Records {
		if r.Type == tape.RecordTypeTermination && r.Termination.Reason.Kind == search.TerminationGoalReached {
			return r.Termination.Reason.NodeID, true
		}
	}
	return 0, false
}

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
	current := goalNodeID
	for known[current] {
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

// ToCanonicalJSONBytes renders tr as the exact bytes tool_transcript.json
// holds in the evidence bundle.
func (tr *ToolTranscript) ToCanonicalJSONBytes() ([]byte, error) {
	entries := make([]any, len(tr.Entries))
	for i, e := range tr.Entries {
		entries[i] = map[string]any{
			"step_index": e.StepIndex,
			"operator":   e.Operator,
			"op_code":    e.OpCode.String(),
			"args":       hex.EncodeToString(e.Args),
			"outcome":    e.Outcome,
		}
	}
	return codec.CanonicalJSONBytes(map[string]any{
		"schema_version": SchemaVersion,
		"txn_epoch":      tr.TxnEpoch,
		"world_id":       tr.WorldID,
		"entries":        entries,
		"entry_count":    len(tr.Entries),
	})
}

// SortEntries reorders entries by step_index ascending, matching the
// original's "transcript_step_indices_monotonic" invariant.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].StepIndex < entries[j].StepIndex })
}
