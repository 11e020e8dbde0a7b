// Copyright 2025 Certen Protocol
//
// VerifyBundle: the fail-closed multi-step bundle verification pipeline.
// Grounded on the staged per-level structure of
// pkg/verification/unified_verifier.go (UnifiedVerifier/UnifiedVerifierConfig
// selecting which checks run), but restructured from that file's
// accumulate-every-error-and-warning shape into first-error-short-circuits:
// a bundle verifier is a trust boundary, and a consumer that sees "no error"
// must be able to rely on every single check having actually run and
// passed, not on none of the fatal ones happening to fire this time.
//
// Every artifact name referenced below is one of the pkg/bundle.Artifact*
// constants; this package takes no dependency on how the bundle was
// produced, only on the content-addressed shape pkg/bundle defines.
package verifier

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/certen/sterling/pkg/bundle"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/search"
	"github.com/certen/sterling/pkg/tape"
)

var alwaysRequired = []string{
	bundle.ArtifactFixture,
	bundle.ArtifactCompilationManifest,
	bundle.ArtifactPolicySnapshot,
	bundle.ArtifactVerificationReport,
	bundle.ArtifactOperatorRegistry,
	bundle.ArtifactConceptRegistry,
}

// VerifyBundle runs every Base-profile check, in order, stopping at the
// first failure. On success it returns the decoded verification report.
func VerifyBundle(b *bundle.Bundle) (*VerificationReport, error) {
	return VerifyBundleWithProfile(b, ProfileBase)
}

// VerifyBundleWithProfile runs the named profile's checks. ProfileCert
// additionally requires search_tape.stap and runs the tape-binding and
// tape<->graph equivalence checks.
func VerifyBundleWithProfile(b *bundle.Bundle, profile Profile) (*VerificationReport, error) {
	step := 0
	next := func() int { step++; return step }

	// 1. Every stored artifact's content hash matches its recomputed hash.
	for _, name := range sortedArtifactNames(b) {
		a := b.Artifacts[name]
		recomputed := bundle.ContentHashOf(a.Content)
		if !recomputed.Equal(a.ContentHash) {
			return nil, &VerifyError{Kind: ErrContentHashMismatch, Step: next(), Artifact: name,
				Expected: a.ContentHash.String(), Actual: recomputed.String()}
		}
	}

	// 2. The manifest is exactly what Build would produce from this artifact set.
	manifest, err := bundle.BuildManifestBytes(b.Artifacts)
	if err != nil {
		return nil, &VerifyError{Kind: ErrManifestMismatch, Step: next(), Detail: err.Error()}
	}
	if !bytes.Equal(manifest, b.Manifest) {
		return nil, &VerifyError{Kind: ErrManifestMismatch, Step: next()}
	}

	// 3. Every JSON artifact is already in canonical form — a bundle never
	// carries bytes a verifier would have to re-encode to trust.
	for _, name := range sortedArtifactNames(b) {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		a := b.Artifacts[name]
		canon, err := codec.CanonicalizeJSON(a.Content)
		if err != nil || !bytes.Equal(canon, a.Content) {
			return nil, &VerifyError{Kind: ErrArtifactNotCanonical, Step: next(), Artifact: name}
		}
	}

	// 4. Digest basis recomputes to the stored bytes.
	digestBasis, err := bundle.BuildDigestBasisBytes(b.Artifacts)
	if err != nil {
		return nil, &VerifyError{Kind: ErrDigestBasisMismatch, Step: next(), Detail: err.Error()}
	}
	if !bytes.Equal(digestBasis, b.DigestBasis) {
		return nil, &VerifyError{Kind: ErrDigestBasisMismatch, Step: next()}
	}

	// 5. Final digest recomputes to the stored digest.
	digest := bundle.ComputeDigest(b.DigestBasis)
	if !digest.Equal(b.Digest) {
		return nil, &VerifyError{Kind: ErrDigestMismatch, Step: next(), Expected: b.Digest.String(), Actual: digest.String()}
	}

	// 6. Every always-required artifact is present.
	for _, name := range alwaysRequired {
		if _, ok := b.Artifacts[name]; !ok {
			return nil, &VerifyError{Kind: ErrMissingRequiredArtifact, Step: next(), Artifact: name}
		}
	}

	// 7. The report decodes and declares a known mode.
	report, err := parseReport(b.Artifacts[bundle.ArtifactVerificationReport].Content)
	if err != nil {
		verr := err.(*VerifyError)
		verr.Step = next()
		return nil, verr
	}

	// 8. search_graph.json presence matches the declared mode.
	_, hasGraph := b.Artifacts[bundle.ArtifactSearchGraph]
	if report.Mode == "search" && !hasGraph {
		return nil, &VerifyError{Kind: ErrSearchGraphArtifactMissing, Step: next(), Artifact: bundle.ArtifactSearchGraph}
	}
	if report.Mode != "search" && hasGraph {
		return nil, &VerifyError{Kind: ErrUnexpectedSearchGraphArtifact, Step: next(), Artifact: bundle.ArtifactSearchGraph}
	}

	// 9. Report digest bindings: policy, fixture, operator set, scorer.
	if err := checkReportBinding(next(), report.PolicyDigest, bundle.ArtifactPolicySnapshot, b); err != nil {
		return nil, err
	}
	if err := checkReportBinding(next(), report.FixtureDigest, bundle.ArtifactFixture, b); err != nil {
		return nil, err
	}
	if err := checkReportBinding(next(), report.OperatorSetDigest, bundle.ArtifactOperatorRegistry, b); err != nil {
		return nil, err
	}
	_, hasScorer := b.Artifacts[bundle.ArtifactScorer]
	switch {
	case hasScorer && report.ScorerDigest == "":
		return nil, &VerifyError{Kind: ErrReportBindingMismatch, Step: next(), Field: "scorer_digest", Detail: "scorer.json present but report declares no scorer_digest"}
	case !hasScorer && report.ScorerDigest != "":
		return nil, &VerifyError{Kind: ErrReportBindingMismatch, Step: next(), Field: "scorer_digest", Detail: "report declares scorer_digest but no scorer.json artifact is present"}
	case hasScorer:
		if err := checkReportBinding(next(), report.ScorerDigest, bundle.ArtifactScorer, b); err != nil {
			return nil, err
		}
	}

	var graph *graphEnvelopeJSON
	if report.Mode == "search" {
		// 10. search_graph_digest binds to the graph artifact.
		if err := checkReportBinding(next(), report.SearchGraphDigest, bundle.ArtifactSearchGraph, b); err != nil {
			return nil, err
		}

		// 11. The graph decodes structurally.
		graph, err = parseGraphEnvelope(b.Artifacts[bundle.ArtifactSearchGraph].Content)
		if err != nil {
			verr := err.(*VerifyError)
			verr.Step = next()
			return nil, verr
		}

		// 12. Graph metadata bindings match the report's declared values.
		if err := checkMetadataBinding(next(), "world_id", graph.Metadata.WorldID, report.WorldID); err != nil {
			return nil, err
		}
		if err := checkMetadataBinding(next(), "policy_snapshot_digest", graph.Metadata.PolicySnapshotDigest, report.PolicyDigest); err != nil {
			return nil, err
		}
		if err := checkMetadataBinding(next(), "operator_set_digest", graph.Metadata.OperatorSetDigest, report.OperatorSetDigest); err != nil {
			return nil, err
		}
		if graph.Metadata.ScorerDigest != report.ScorerDigest {
			return nil, &VerifyError{Kind: ErrMetadataBindingMismatch, Step: next(), Field: "scorer_digest",
				Expected: report.ScorerDigest, Actual: graph.Metadata.ScorerDigest}
		}

		// 13. Every model_digest-sourced candidate score binds to scorer.json.
		used, err := graph.modelDigestsUsed()
		if err != nil {
			verr := err.(*VerifyError)
			verr.Step = next()
			return nil, verr
		}
		if len(used) > 0 && !hasScorer {
			return nil, &VerifyError{Kind: ErrCandidateScoreSourceMismatch, Step: next(), Detail: "candidate scored via model_digest but no scorer.json is present"}
		}
		if hasScorer {
			scorerHash := bundle.ContentHashOf(b.Artifacts[bundle.ArtifactScorer].Content).HexDigest()
			for digest := range used {
				if digest != scorerHash {
					return nil, &VerifyError{Kind: ErrCandidateScoreSourceMismatch, Step: next(),
						Expected: scorerHash, Actual: digest}
				}
			}
		}

		// 16. Node summaries are internally coherent.
		if err := checkNodeSummaries(next(), graph); err != nil {
			return nil, err
		}
	}

	// 14. Operator registry is semantically coherent, not just byte-canonical.
	if err := checkOperatorRegistryCoherence(b.Artifacts[bundle.ArtifactOperatorRegistry].Content); err != nil {
		verr := err.(*VerifyError)
		verr.Step = next()
		return nil, verr
	}

	// 15. compilation_manifest.json is present and a non-empty JSON object.
	if err := checkCompilationManifest(next(), b.Artifacts[bundle.ArtifactCompilationManifest].Content); err != nil {
		return nil, err
	}

	if profile != ProfileCert {
		return report, nil
	}

	// --- Cert profile: tape presence, digest binding, parse, header
	// bindings, and tape<->graph byte equivalence. ---

	tapeArtifact, hasTape := b.Artifacts[bundle.ArtifactSearchTape]
	if report.Mode == "search" && !hasTape {
		return nil, &VerifyError{Kind: ErrMissingRequiredArtifact, Step: next(), Artifact: bundle.ArtifactSearchTape}
	}
	if report.Mode == "search" {
		// 17. tape_digest binds to the tape artifact.
		if err := checkReportBinding(next(), report.TapeDigest, bundle.ArtifactSearchTape, b); err != nil {
			return nil, err
		}

		// 18. The tape parses and structurally validates.
		parsed, err := tape.ReadTape(tapeArtifact.Content)
		if err != nil {
			return nil, &VerifyError{Kind: ErrTapeParseFailed, Step: next(), Artifact: bundle.ArtifactSearchTape, Detail: err.Error()}
		}

		// 19. Tape header bindings match the graph metadata.
		renderedGraph, err := parsed.ToGraph()
		if err != nil {
			return nil, &VerifyError{Kind: ErrTapeParseFailed, Step: next(), Artifact: bundle.ArtifactSearchTape, Detail: err.Error()}
		}
		if err := checkTapeHeaderBindings(next(), renderedGraph, graph); err != nil {
			return nil, err
		}

		// 20. Tape-rendered graph is byte-identical to search_graph.json.
		renderedBytes, err := renderedGraph.ToCanonicalJSONBytes()
		if err != nil {
			return nil, &VerifyError{Kind: ErrTapeGraphEquivalenceMismatch, Step: next(), Detail: err.Error()}
		}
		if !bytes.Equal(renderedBytes, b.Artifacts[bundle.ArtifactSearchGraph].Content) {
			return nil, &VerifyError{Kind: ErrTapeGraphEquivalenceMismatch, Step: next()}
		}
	}

	// 21. Identity/evidence-plane bindings, when the world declares them.
	if report.IdentityDigest != "" || report.EvidenceDigest != "" {
		if graph == nil {
			return nil, &VerifyError{Kind: ErrIdentityEvidenceBindingMismatch, Step: next(), Detail: "identity/evidence digest declared but no search graph to bind against"}
		}
		if report.IdentityDigest != graph.Metadata.RootIdentityDigest {
			return nil, &VerifyError{Kind: ErrIdentityEvidenceBindingMismatch, Step: next(), Field: "identity_digest",
				Expected: report.IdentityDigest, Actual: graph.Metadata.RootIdentityDigest}
		}
		if report.EvidenceDigest != graph.Metadata.RootEvidenceDigest {
			return nil, &VerifyError{Kind: ErrIdentityEvidenceBindingMismatch, Step: next(), Field: "evidence_digest",
				Expected: report.EvidenceDigest, Actual: graph.Metadata.RootEvidenceDigest}
		}
	}

	// 22. Tool transcript, when present, binds by content hash.
	if transcript, ok := b.Artifacts[bundle.ArtifactToolTranscript]; ok {
		s := next()
		if report.ToolTranscriptDigest == "" {
			return nil, &VerifyError{Kind: ErrToolTranscriptDigestMismatch, Step: s, Artifact: bundle.ArtifactToolTranscript,
				Detail: "tool_transcript.json present but report declares no tool_transcript_digest"}
		}
		got := bundle.ContentHashOf(transcript.Content).String()
		if got != report.ToolTranscriptDigest {
			return nil, &VerifyError{Kind: ErrToolTranscriptDigestMismatch, Step: s, Expected: report.ToolTranscriptDigest, Actual: got}
		}
	}

	return report, nil
}

func checkReportBinding(step int, declared string, artifactName string, b *bundle.Bundle) error {
	a, ok := b.Artifacts[artifactName]
	if !ok {
		return &VerifyError{Kind: ErrReportBindingMismatch, Step: step, Artifact: artifactName, Detail: "artifact not present"}
	}
	want := bundle.ContentHashOf(a.Content).String()
	if declared != want {
		return &VerifyError{Kind: ErrReportBindingMismatch, Step: step, Artifact: artifactName, Expected: want, Actual: declared}
	}
	return nil
}

func checkMetadataBinding(step int, field, metadataValue, reportValue string) error {
	if metadataValue != reportValue {
		return &VerifyError{Kind: ErrMetadataBindingMismatch, Step: step, Field: field, Expected: reportValue, Actual: metadataValue}
	}
	return nil
}

func checkNodeSummaries(step int, g *graphEnvelopeJSON) error {
	if len(g.NodeSummaries) == 0 {
		return &VerifyError{Kind: ErrNodeSummariesInvalid, Step: step, Detail: "node_summaries is empty"}
	}
	seen := make(map[uint64]bool, len(g.NodeSummaries))
	var lastID uint64
	goalCount := 0
	for i, n := range g.NodeSummaries {
		if seen[n.NodeID] {
			return &VerifyError{Kind: ErrNodeSummariesInvalid, Step: step, Detail: "duplicate node_id in node_summaries"}
		}
		if i > 0 && n.NodeID < lastID {
			return &VerifyError{Kind: ErrNodeSummariesInvalid, Step: step, Detail: "node_summaries not sorted by node_id ascending"}
		}
		seen[n.NodeID] = true
		lastID = n.NodeID
		if n.IsGoal {
			goalCount++
		}
	}
	goalReached := g.Metadata.TerminationReason.Type == string(search.TerminationGoalReached)
	if goalReached && goalCount != 1 {
		return &VerifyError{Kind: ErrTerminationIncoherent, Step: step, Detail: "termination_reason is goal_reached but node_summaries does not mark exactly one node is_goal"}
	}
	if !goalReached && goalCount != 0 {
		return &VerifyError{Kind: ErrTerminationIncoherent, Step: step, Detail: "a node_summary is marked is_goal but termination_reason is not goal_reached"}
	}
	return nil
}

func checkCompilationManifest(step int, content []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		return &VerifyError{Kind: ErrCompilationManifestMismatch, Step: step, Artifact: bundle.ArtifactCompilationManifest, Detail: err.Error()}
	}
	if len(doc) == 0 {
		return &VerifyError{Kind: ErrCompilationManifestMissing, Step: step, Artifact: bundle.ArtifactCompilationManifest}
	}
	return nil
}

func checkTapeHeaderBindings(step int, rendered *search.Graph, graph *graphEnvelopeJSON) error {
	if rendered.Metadata.WorldID != graph.Metadata.WorldID {
		return &VerifyError{Kind: ErrTapeHeaderBindingMismatch, Step: step, Field: "world_id",
			Expected: graph.Metadata.WorldID, Actual: rendered.Metadata.WorldID}
	}
	if rendered.Metadata.PolicySnapshotDigest != graph.Metadata.PolicySnapshotDigest {
		return &VerifyError{Kind: ErrTapeHeaderBindingMismatch, Step: step, Field: "policy_snapshot_digest",
			Expected: graph.Metadata.PolicySnapshotDigest, Actual: rendered.Metadata.PolicySnapshotDigest}
	}
	if rendered.Metadata.RegistryDigest != graph.Metadata.RegistryDigest {
		return &VerifyError{Kind: ErrTapeHeaderBindingMismatch, Step: step, Field: "registry_digest",
			Expected: graph.Metadata.RegistryDigest, Actual: rendered.Metadata.RegistryDigest}
	}
	if rendered.Metadata.ScorerDigest != graph.Metadata.ScorerDigest {
		return &VerifyError{Kind: ErrTapeHeaderBindingMismatch, Step: step, Field: "scorer_digest",
			Expected: graph.Metadata.ScorerDigest, Actual: rendered.Metadata.ScorerDigest}
	}
	if rendered.Metadata.OperatorSetDigest != graph.Metadata.OperatorSetDigest {
		return &VerifyError{Kind: ErrTapeHeaderBindingMismatch, Step: step, Field: "operator_set_digest",
			Expected: graph.Metadata.OperatorSetDigest, Actual: rendered.Metadata.OperatorSetDigest}
	}
	if rendered.Metadata.RootIdentityDigest != graph.Metadata.RootIdentityDigest {
		return &VerifyError{Kind: ErrTapeHeaderBindingMismatch, Step: step, Field: "root_identity_digest",
			Expected: graph.Metadata.RootIdentityDigest, Actual: rendered.Metadata.RootIdentityDigest}
	}
	if rendered.Metadata.RootEvidenceDigest != graph.Metadata.RootEvidenceDigest {
		return &VerifyError{Kind: ErrTapeHeaderBindingMismatch, Step: step, Field: "root_evidence_digest",
			Expected: graph.Metadata.RootEvidenceDigest, Actual: rendered.Metadata.RootEvidenceDigest}
	}
	return nil
}

func sortedArtifactNames(b *bundle.Bundle) []string {
	names := make([]string, 0, len(b.Artifacts))
	for name := range b.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
