// Copyright 2025 Certen Protocol

package tape

import (
	"encoding/json"
	"testing"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
)

func sampleHeaderBytes(t *testing.T) []byte {
	t.Helper()
	header := map[string]any{
		"world_id":               "slotlattice",
		"schema_descriptor":      "slotlattice.v1",
		"registry_digest":        "sha256:" + hex64('a'),
		"policy_snapshot_digest": "sha256:" + hex64('b'),
		"search_policy_digest":   "sha256:" + hex64('c'),
		"root_state_fingerprint": hex64('d'),
		"dedup_key":              string(search.DedupIdentityOnly),
		"prune_visited_policy":   string(search.PruneKeepVisited),
	}
	b, err := codec.CanonicalJSONBytes(header)
	if err != nil {
		t.Fatalf("canonicalize header: %v", err)
	}
	return b
}

func hex64(b byte) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = b
	}
	return string(out)
}

func buildSampleRun(t *testing.T) ([]search.SearchNode, []search.ExpandEvent, search.TerminationReason, uint64) {
	t.Helper()
	fp0 := hex64('0')
	fp1 := hex64('1')
	root := search.SearchNode{NodeID: 0, StateFingerprint: mustContentHash(t, fp0)}
	parentOfOne := uint64(0)
	child := search.SearchNode{NodeID: 1, ParentID: &parentOfOne, StateFingerprint: mustContentHash(t, fp1), Depth: 1, GCost: 1}

	op := carrier.NewCode32(1, 1, 7)
	event := search.ExpandEvent{
		ExpansionOrder:   0,
		NodeID:           0,
		StateFingerprint: fp0,
		FrontierPopKey:   search.FrontierPopKey{FCost: 0, Depth: 0, CreationOrder: 0},
		Candidates: []search.CandidateRecord{
			{
				Index: 0,
				Action: search.CandidateAction{
					OpCode:        op,
					OpArgs:        []byte{1, 2, 3},
					CanonicalHash: hex64('e'),
				},
				Score:   search.CandidateScore{Bonus: 0, Source: search.ScoreSource{Kind: search.ScoreSourceUniform}},
				Outcome: search.CandidateOutcome{Kind: search.OutcomeApplied, ToNode: 1},
			},
		},
	}

	reason := search.TerminationReason{Kind: search.TerminationGoalReached, NodeID: 1}
	return []search.SearchNode{root, child}, []search.ExpandEvent{event}, reason, 3
}

func mustContentHash(t *testing.T, hexDigest string) codec.ContentHash {
	t.Helper()
	h, err := codec.ParseContentHash("sha256:" + hexDigest)
	if err != nil {
		t.Fatalf("ParseContentHash: %v", err)
	}
	return h
}

func TestToGraph_MatchesDirectlyBuiltGraphCanonicalBytes(t *testing.T) {
	nodes, expansions, reason, frontierHighWater := buildSampleRun(t)

	w := NewTapeWriter(sampleHeaderBytes(t))
	for _, n := range nodes {
		w.OnNodeCreated(n)
	}
	for _, e := range expansions {
		w.OnExpansion(e)
	}
	w.OnTermination(reason, frontierHighWater)
	out, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	parsed, err := ReadTape(out.Bytes)
	if err != nil {
		t.Fatalf("ReadTape: %v", err)
	}
	rendered, err := parsed.ToGraph()
	if err != nil {
		t.Fatalf("ToGraph: %v", err)
	}

	direct := &search.Graph{
		Expansions: expansions,
		NodeSummaries: []search.NodeSummary{
			{NodeID: 0, StateFingerprint: hex64('0'), IsGoal: false},
			{NodeID: 1, ParentID: ptr(uint64(0)), StateFingerprint: hex64('1'), Depth: 1, FCost: 1, IsGoal: true},
		},
		Metadata: search.Metadata{
			WorldID:                   "slotlattice",
			SchemaDescriptor:          "slotlattice.v1",
			RegistryDigest:            "sha256:" + hex64('a'),
			PolicySnapshotDigest:      "sha256:" + hex64('b'),
			SearchPolicyDigest:        "sha256:" + hex64('c'),
			RootStateFingerprint:      hex64('d'),
			DedupKey:                  search.DedupIdentityOnly,
			PruneVisitedPolicy:        search.PruneKeepVisited,
			TotalExpansions:           1,
			TotalCandidatesGenerated:  1,
			TerminationReason:         reason,
			FrontierHighWater:         frontierHighWater,
		},
	}
	expOrder := uint64(0)
	direct.NodeSummaries[0].ExpansionOrder = &expOrder

	renderedBytes, err := rendered.ToCanonicalJSONBytes()
	if err != nil {
		t.Fatalf("rendered.ToCanonicalJSONBytes: %v", err)
	}
	directBytes, err := direct.ToCanonicalJSONBytes()
	if err != nil {
		t.Fatalf("direct.ToCanonicalJSONBytes: %v", err)
	}

	var renderedVal, directVal any
	if err := json.Unmarshal(renderedBytes, &renderedVal); err != nil {
		t.Fatalf("unmarshal rendered: %v", err)
	}
	if err := json.Unmarshal(directBytes, &directVal); err != nil {
		t.Fatalf("unmarshal direct: %v", err)
	}
	renderedRoundTrip, _ := json.Marshal(renderedVal)
	directRoundTrip, _ := json.Marshal(directVal)
	if string(renderedRoundTrip) != string(directRoundTrip) {
		t.Errorf("tape-rendered graph differs from directly-built graph:\nrendered=%s\ndirect=%s", renderedBytes, directBytes)
	}
}

func ptr(v uint64) *uint64 { return &v }
