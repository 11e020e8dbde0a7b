// Copyright 2025 Certen Protocol
//
// Package harness orchestrates pkg/worlds, pkg/search, pkg/tape, and
// pkg/bundle into the producer half of spec.md §6's external interface:
// RunSearch builds one evidence bundle from a world descriptor, a search
// policy, and a scorer. Grounded on
// original_source/harness/src/runner.rs's run_search pipeline (encode_payload
// -> compile -> build bindings -> search_with_tape -> assemble bundle),
// restructured around this module's pkg/worlds.Descriptor and pkg/bundle
// APIs instead of the original's WorldHarnessV1/ArtifactBundleV1 traits.
package harness

import (
	"encoding/json"
	"fmt"

	"github.com/certen/sterling/pkg/bundle"
	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/metrics"
	"github.com/certen/sterling/pkg/registry"
	"github.com/certen/sterling/pkg/search"
	"github.com/certen/sterling/pkg/tape"
	"github.com/certen/sterling/pkg/worlds"
	"github.com/certen/sterling/pkg/worlds/transcript"
)

// evidenceObligationToolTranscript is the codebreak-style obligation
// pkg/worlds/codebreak.Dimensions declares; RunSearch renders
// tool_transcript.json only for worlds that opt in.
const evidenceObligationToolTranscript = "tool_transcript_equivalence_v1"

// ScorerInput is the atomic scorer selection for one run: either the
// uniform (bonus=0, no artifact) scorer, or a table scorer paired with its
// own bundle artifact — grounded on runner.rs's ScorerInputV1, which makes
// "table scorer without an artifact" an unrepresentable state.
type ScorerInput struct {
	Scorer       search.Scorer
	ArtifactJSON []byte // nil for the uniform scorer
}

// Uniform is the no-op scorer input: bonus=0 for every candidate, no
// scorer.json artifact, no scorer_digest anywhere in the bundle.
func Uniform() ScorerInput {
	return ScorerInput{Scorer: search.UniformScorer{}}
}

// RunSearch drives w through the best-first search engine under policy and
// scorerInput, then assembles the resulting evidence bundle. The bundle is
// normative-closed (every artifact Build produces participates in the
// digest basis except scorer.json and tool_transcript.json, mirroring the original's per-artifact
// normative flags) and passes pkg/verifier.VerifyBundleWithProfile at
// ProfileCert when a tape is present, which RunSearch always includes.
//
// recorder is an optional diagnostic side channel (spec.md §4.4's health
// metrics); a nil recorder disables metrics entirely and costs nothing
// beyond one extra no-op method call per event.
func RunSearch(w worlds.Descriptor, policy search.Policy, scorerInput ScorerInput, recorder *metrics.Recorder) (*bundle.Bundle, error) {
	payload, err := w.EncodePayload()
	if err != nil {
		return nil, fmt.Errorf("harness: encode payload: %w", err)
	}

	conceptReg, err := w.Registry()
	if err != nil {
		return nil, fmt.Errorf("harness: build concept registry: %w", err)
	}
	conceptRegBytes, err := conceptReg.CanonicalBytes()
	if err != nil {
		return nil, fmt.Errorf("harness: concept registry canonical bytes: %w", err)
	}
	conceptRegDigest, err := conceptReg.Digest()
	if err != nil {
		return nil, fmt.Errorf("harness: concept registry digest: %w", err)
	}

	opReg, err := w.OperatorRegistry()
	if err != nil {
		return nil, fmt.Errorf("harness: build operator registry: %w", err)
	}
	opRegBytes, err := opReg.CanonicalBytes()
	if err != nil {
		return nil, fmt.Errorf("harness: operator registry canonical bytes: %w", err)
	}
	opRegDigest, err := opReg.Digest()
	if err != nil {
		return nil, fmt.Errorf("harness: operator registry digest: %w", err)
	}

	schemaHash, err := w.SchemaDescriptorHash()
	if err != nil {
		return nil, fmt.Errorf("harness: schema descriptor hash: %w", err)
	}

	rootState, err := worlds.RootState(w)
	if err != nil {
		return nil, fmt.Errorf("harness: root state: %w", err)
	}

	fixtureBytes, err := buildFixtureJSON(w, payload)
	if err != nil {
		return nil, fmt.Errorf("harness: build fixture: %w", err)
	}

	policySnapshotBytes, err := buildPolicySnapshotJSON(policy)
	if err != nil {
		return nil, fmt.Errorf("harness: build policy snapshot: %w", err)
	}
	// Report/graph bindings checked by pkg/verifier's ContentHashOf(...).String()
	// comparisons (spec.md §4.6 steps 9-10, 12, 17, 22) carry the
	// "sha256:"-prefixed form throughout; digests pkg/verifier never
	// cross-checks against a recomputed artifact hash (registry_digest,
	// schema_descriptor, concept_set_digest) stay in bare hex form.
	policyDigest := bundle.ContentHashOf(policySnapshotBytes).String()

	bindings := search.MetadataBindings{
		WorldID:              w.WorldID(),
		SchemaDescriptor:     schemaHash.HexDigest(),
		RegistryDigest:       conceptRegDigest.HexDigest(),
		PolicySnapshotDigest: policyDigest,
		SearchPolicyDigest:   policyDigest,
		OperatorSetDigest:    opRegDigest.String(),
	}

	headerJSON, err := tapeHeaderJSON(bindings, rootState, policy, opRegDigest.String())
	if err != nil {
		return nil, fmt.Errorf("harness: build tape header: %w", err)
	}
	tapeWriter := tape.NewTapeWriter(headerJSON)
	sink := metrics.Wrap(tapeWriter, recorder)

	result, err := search.Run(rootState, w, opReg, policy, scorerInput.Scorer, bindings, sink)
	if err != nil {
		return nil, fmt.Errorf("harness: search run: %w", err)
	}
	tapeOutput, err := tapeWriter.Finish()
	if err != nil {
		return nil, fmt.Errorf("harness: tape writer finish: %w", err)
	}

	graphBytes, err := result.Graph.ToCanonicalJSONBytes()
	if err != nil {
		return nil, fmt.Errorf("harness: graph canonical bytes: %w", err)
	}

	compilationManifestBytes, err := buildCompilationManifestJSON(w, rootState, schemaHash, conceptRegDigest)
	if err != nil {
		return nil, fmt.Errorf("harness: build compilation manifest: %w", err)
	}

	inputs := []bundle.ArtifactInput{
		{Name: bundle.ArtifactFixture, Content: fixtureBytes, Normative: true},
		{Name: bundle.ArtifactCompilationManifest, Content: compilationManifestBytes, Normative: true},
		{Name: bundle.ArtifactPolicySnapshot, Content: policySnapshotBytes, Normative: true},
		{Name: bundle.ArtifactSearchGraph, Content: graphBytes, Normative: true},
		{Name: bundle.ArtifactSearchTape, Content: tapeOutput.Bytes, Normative: true},
		{Name: bundle.ArtifactOperatorRegistry, Content: opRegBytes, Normative: true},
		{Name: bundle.ArtifactConceptRegistry, Content: conceptRegBytes, Normative: true},
	}

	var scorerDigest string
	if scorerInput.ArtifactJSON != nil {
		scorerDigest = bundle.ContentHashOf(scorerInput.ArtifactJSON).String()
		inputs = append(inputs, bundle.ArtifactInput{Name: bundle.ArtifactScorer, Content: scorerInput.ArtifactJSON, Normative: false})
	}

	_, _, _, evidenceObligations := w.Dimensions()
	var toolTranscriptDigest string
	if containsObligation(evidenceObligations, evidenceObligationToolTranscript) {
		parsed, err := tape.ReadTape(tapeOutput.Bytes)
		if err != nil {
			return nil, fmt.Errorf("harness: parse tape for transcript: %w", err)
		}
		nameOf := operatorNamer(opReg)
		tr, err := transcript.Render(parsed, w.WorldID(), 0, nameOf)
		if err != nil {
			return nil, fmt.Errorf("harness: render tool transcript: %w", err)
		}
		trBytes, err := tr.ToCanonicalJSONBytes()
		if err != nil {
			return nil, fmt.Errorf("harness: tool transcript canonical bytes: %w", err)
		}
		toolTranscriptDigest = bundle.ContentHashOf(trBytes).String()
		inputs = append(inputs, bundle.ArtifactInput{Name: bundle.ArtifactToolTranscript, Content: trBytes, Normative: false})
	}

	reportBytes, err := buildVerificationReportJSON(reportFields{
		WorldID:              w.WorldID(),
		PolicyDigest:         policyDigest,
		FixtureDigest:        bundle.ContentHashOf(fixtureBytes).String(),
		ScorerDigest:         scorerDigest,
		SearchGraphDigest:    bundle.ContentHashOf(graphBytes).String(),
		TapeDigest:           bundle.ContentHashOf(tapeOutput.Bytes).String(),
		OperatorSetDigest:    opRegDigest.String(),
		ConceptSetDigest:     conceptRegDigest.HexDigest(),
		ToolTranscriptDigest: toolTranscriptDigest,
	})
	if err != nil {
		return nil, fmt.Errorf("harness: build verification report: %w", err)
	}
	inputs = append(inputs, bundle.ArtifactInput{Name: bundle.ArtifactVerificationReport, Content: reportBytes, Normative: true})

	b, err := bundle.Build(inputs)
	if err != nil {
		return nil, fmt.Errorf("harness: assemble bundle: %w", err)
	}
	return b, nil
}

func containsObligation(obligations []string, want string) bool {
	for _, o := range obligations {
		if o == want {
			return true
		}
	}
	return false
}

func operatorNamer(reg *registry.OperatorRegistry) transcript.OperatorName {
	return func(c carrier.Code32) string {
		if entry, ok := reg.Get(c); ok {
			return entry.Name
		}
		return c.String()
	}
}

func buildFixtureJSON(w worlds.Descriptor, payload []byte) ([]byte, error) {
	layerCount, slotCount, argSlotCount, evidenceObligations := w.Dimensions()
	return codec.CanonicalJSONBytes(map[string]any{
		"world_id":             w.WorldID(),
		"layer_count":          layerCount,
		"slot_count":           slotCount,
		"arg_slot_count":       argSlotCount,
		"evidence_obligations": evidenceObligations,
		"payload":              json.RawMessage(payload),
	})
}
