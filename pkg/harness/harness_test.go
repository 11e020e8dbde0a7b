// Copyright 2025 Certen Protocol

package harness

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/certen/sterling/pkg/bundle"
	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/search"
	"github.com/certen/sterling/pkg/tape"
	"github.com/certen/sterling/pkg/verifier"
	"github.com/certen/sterling/pkg/worlds/codebreak"
	"github.com/certen/sterling/pkg/worlds/slotlattice"
)

func testPolicy() search.Policy {
	return search.Policy{
		DedupKey:             search.DedupIdentityOnly,
		PruneVisitedPolicy:   search.PruneKeepVisited,
		MaxCandidatesPerNode: 16,
		MaxDepth:             32,
		MaxExpansions:        5000,
		MaxFrontierSize:      5000,
	}
}

func codes(values ...uint16) []carrier.Code32 {
	out := make([]carrier.Code32, len(values))
	for i, v := range values {
		out[i] = carrier.NewCode32(2, 1, v)
	}
	return out
}

func TestRunSearch_SlotLattice_PassesCertProfile(t *testing.T) {
	w := slotlattice.New("slotlattice-harness-test", codes(1, 2), codes(1, 2))

	b, err := RunSearch(w, testPolicy(), Uniform(), nil)
	if err != nil {
		t.Fatalf("RunSearch: %v", err)
	}
	if _, err := verifier.VerifyBundleWithProfile(b, verifier.ProfileCert); err != nil {
		t.Fatalf("VerifyBundleWithProfile(ProfileCert): %v", err)
	}
}

func TestRunSearch_Codebreak_PassesCertProfileAndHasToolTranscript(t *testing.T) {
	w := codebreak.New("codebreak-harness-test", codes(1, 2), codes(1, 2, 3))

	b, err := RunSearch(w, testPolicy(), Uniform(), nil)
	if err != nil {
		t.Fatalf("RunSearch: %v", err)
	}
	if _, ok := b.Artifacts[bundle.ArtifactToolTranscript]; !ok {
		t.Error("codebreak bundle missing tool_transcript.json (codebreak declares the obligation)")
	}
	if _, err := verifier.VerifyBundleWithProfile(b, verifier.ProfileCert); err != nil {
		t.Fatalf("VerifyBundleWithProfile(ProfileCert): %v", err)
	}
}

func TestRunSearch_Deterministic(t *testing.T) {
	build := func() []byte {
		w := slotlattice.New("determinism-test", codes(1, 2), codes(1, 2))
		b, err := RunSearch(w, testPolicy(), Uniform(), nil)
		if err != nil {
			t.Fatalf("RunSearch: %v", err)
		}
		return b.Manifest
	}

	first := build()
	second := build()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two identical RunSearch calls produced different manifests (-first +second):\n%s", diff)
	}
}

func TestRunSearch_TapeGraphMatchesStoredGraph(t *testing.T) {
	w := slotlattice.New("tape-roundtrip-test", codes(1, 2, 3), codes(1, 2, 3))

	b, err := RunSearch(w, testPolicy(), Uniform(), nil)
	if err != nil {
		t.Fatalf("RunSearch: %v", err)
	}

	tapeArtifact := b.Artifacts[bundle.ArtifactSearchTape]
	parsed, err := tape.ReadTape(tapeArtifact.Content)
	if err != nil {
		t.Fatalf("ReadTape: %v", err)
	}
	rebuilt, err := parsed.ToGraph()
	if err != nil {
		t.Fatalf("ToGraph: %v", err)
	}
	rebuiltBytes, err := rebuilt.ToCanonicalJSONBytes()
	if err != nil {
		t.Fatalf("rebuilt.ToCanonicalJSONBytes: %v", err)
	}

	graphArtifact := b.Artifacts[bundle.ArtifactSearchGraph]
	if diff := cmp.Diff(string(graphArtifact.Content), string(rebuiltBytes)); diff != "" {
		t.Errorf("tape-rendered graph differs from search_graph.json (-stored +from_tape):\n%s", diff)
	}
}
