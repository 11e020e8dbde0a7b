// Copyright 2025 Certen Protocol

package transcript

import (
	"strings"
	"testing"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/registry"
	"github.com/certen/sterling/pkg/search"
	"github.com/certen/sterling/pkg/tape"
	"github.com/certen/sterling/pkg/worlds/codebreak"
)

func codes(values ...uint16) []carrier.Code32 {
	out := make([]carrier.Code32, len(values))
	for i, v := range values {
		out[i] = carrier.NewCode32(2, 1, v)
	}
	return out
}

func runCodebreak(t *testing.T) (*tape.SearchTape, *registry.OperatorRegistry) {
	t.Helper()
	w := codebreak.New("transcript-test", codes(1, 2), codes(1, 2, 3))

	layerCount, slotCount, _, _ := w.Dimensions()
	rootState, err := carrier.NewByteState(layerCount, slotCount)
	if err != nil {
		t.Fatalf("NewByteState: %v", err)
	}
	reg, err := w.OperatorRegistry()
	if err != nil {
		t.Fatalf("OperatorRegistry: %v", err)
	}

	headerJSON := []byte(`{}`)
	writer := tape.NewTapeWriter(headerJSON)
	policy := search.Policy{
		DedupKey:             search.DedupIdentityOnly,
		PruneVisitedPolicy:   search.PruneKeepVisited,
		MaxCandidatesPerNode: 32,
		MaxDepth:             32,
		MaxExpansions:        5000,
		MaxFrontierSize:      5000,
	}
	bindings := search.MetadataBindings{WorldID: w.WorldID()}

	if _, err := search.Run(rootState, w, reg, policy, search.UniformScorer{}, bindings, writer); err != nil {
		t.Fatalf("search.Run: %v", err)
	}
	out, err := writer.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	parsed, err := tape.ReadTape(out.Bytes)
	if err != nil {
		t.Fatalf("ReadTape: %v", err)
	}
	return parsed, reg
}

func TestRender_ProducesMonotonicEntriesForSolvedTape(t *testing.T) {
	parsed, reg := runCodebreak(t)
	nameOf := func(c carrier.Code32) string {
		if op, ok := reg.Get(c); ok {
			return op.Name
		}
		return c.String()
	}

	tr, err := Render(parsed, "transcript-test", 0, nameOf)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if tr.WorldID != "transcript-test" {
		t.Errorf("WorldID = %q, want transcript-test", tr.WorldID)
	}
	if len(tr.Entries) == 0 {
		t.Fatal("Render: expected at least one entry on the winning path")
	}
	for i, e := range tr.Entries {
		if e.Outcome != "applied" {
			t.Errorf("entry %d: Outcome = %q, want applied", i, e.Outcome)
		}
		if i > 0 && tr.Entries[i-1].StepIndex > e.StepIndex {
			t.Errorf("entries not monotonic by step_index at %d", i)
		}
	}
}

func TestRender_NoGoalProducesEmptyTranscript(t *testing.T) {
	headerJSON := []byte(`{}`)
	writer := tape.NewTapeWriter(headerJSON)
	writer.OnTermination(search.TerminationReason{Kind: search.TerminationFrontierExhausted}, 0)
	out, err := writer.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	parsed, err := tape.ReadTape(out.Bytes)
	if err != nil {
		t.Fatalf("ReadTape: %v", err)
	}

	tr, err := Render(parsed, "empty-world", 0, func(c carrier.Code32) string { return c.String() })
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(tr.Entries) != 0 {
		t.Errorf("len(Entries) = %d, want 0 for a tape with no goal", len(tr.Entries))
	}
}

func TestToCanonicalJSONBytes_ContainsExpectedFields(t *testing.T) {
	parsed, reg := runCodebreak(t)
	nameOf := func(c carrier.Code32) string {
		if op, ok := reg.Get(c); ok {
			return op.Name
		}
		return c.String()
	}
	tr, err := Render(parsed, "transcript-test", 0, nameOf)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	b, err := tr.ToCanonicalJSONBytes()
	if err != nil {
		t.Fatalf("ToCanonicalJSONBytes: %v", err)
	}
	s := string(b)
	for _, field := range []string{"schema_version", "txn_epoch", "world_id", "entries", "entry_count"} {
		if !strings.Contains(s, field) {
			t.Errorf("rendered JSON missing field %q", field)
		}
	}
}

func TestSortEntries_OrdersByStepIndex(t *testing.T) {
	entries := []Entry{
		{StepIndex: 2},
		{StepIndex: 0},
		{StepIndex: 1},
	}
	SortEntries(entries)
	for i := 1; i < len(entries); i++ {
		if entries[i-1].StepIndex > entries[i].StepIndex {
			t.Fatalf("entries not sorted: %v", entries)
		}
	}
}
