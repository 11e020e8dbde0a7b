// Copyright 2025 Certen Protocol
//
// Evidence bundle assembly: content-addressed artifact collection, manifest,
// digest basis, and final digest. Grounded on pkg/proof/bundle_format.go's
// collect-components/FinalizeIntegrity/ComputeArtifactHash/Validate shape,
// re-targeted from the four-component Accumulate proof bundle to the
// 7-9-artifact evidence bundle (spec.md §3, §9).

package bundle

import (
	"sort"

	"github.com/certen/sterling/pkg/codec"
)

// Well-known artifact names. Both producer and verifier reference these
// constants so the required-artifact checks (spec.md §4.6 step 6) and the
// producer's assembly step agree by construction.
const (
	ArtifactFixture             = "fixture.json"
	ArtifactCompilationManifest = "compilation_manifest.json"
	ArtifactPolicySnapshot      = "policy_snapshot.json"
	ArtifactVerificationReport  = "verification_report.json"
	ArtifactSearchGraph         = "search_graph.json"
	ArtifactSearchTape          = "search_tape.stap"
	ArtifactOperatorRegistry    = "operator_registry.json"
	ArtifactConceptRegistry     = "concept_registry.json"
	ArtifactScorer              = "scorer.json"
	ArtifactToolTranscript      = "tool_transcript.json"
)

// SchemaVersion is the manifest's schema_version field (spec.md §4.7: a
// directory read rejects any manifest whose schema_version isn't this).
const SchemaVersion = "bundle.v1"

// Artifact is one named byte blob in the bundle, carrying its own content
// hash and whether it participates in the digest basis.
type Artifact struct {
	Name        string
	Content     []byte
	ContentHash codec.ContentHash
	Normative   bool
}

// Bundle is the complete, immutable evidence package: artifacts plus the
// three derived integrity surfaces (manifest, digest basis, digest).
type Bundle struct {
	Artifacts   map[string]Artifact
	Manifest    []byte
	DigestBasis []byte
	Digest      codec.ContentHash
}

// ArtifactInput is what a producer supplies per artifact before hashing.
type ArtifactInput struct {
	Name      string
	Content   []byte
	Normative bool
}

// Build computes content hashes for every input, then derives the manifest,
// digest basis, and final digest from them. Inputs may be supplied in any
// order; every derived surface sorts by name internally (spec.md §9
// "Manifest & digest basis ordering").
func Build(inputs []ArtifactInput) (*Bundle, error) {
	artifacts := make(map[string]Artifact, len(inputs))
	for _, in := range inputs {
		if _, dup := artifacts[in.Name]; dup {
			return nil, &BuildError{Kind: BuildErrDuplicateArtifactName, Name: in.Name}
		}
		artifacts[in.Name] = Artifact{
			Name:        in.Name,
			Content:     in.Content,
			ContentHash: ContentHashOf(in.Content),
			Normative:   in.Normative,
		}
	}

	manifest, err := BuildManifestBytes(artifacts)
	if err != nil {
		return nil, &BuildError{Kind: BuildErrCanonicalization, Detail: "manifest: " + err.Error()}
	}
	digestBasis, err := BuildDigestBasisBytes(artifacts)
	if err != nil {
		return nil, &BuildError{Kind: BuildErrCanonicalization, Detail: "digest_basis: " + err.Error()}
	}

	return &Bundle{
		Artifacts:   artifacts,
		Manifest:    manifest,
		DigestBasis: digestBasis,
		Digest:      ComputeDigest(digestBasis),
	}, nil
}

// ContentHashOf is H(BundleArtifact, content) — spec.md §4.6 step 1's
// recomputation, shared so the verifier calls the exact function the
// producer used.
func ContentHashOf(content []byte) codec.ContentHash {
	return codec.Hash(codec.DomainBundleArtifact, content)
}

// ComputeDigest is H(BundleDigest, digest_basis_bytes) — spec.md §4.6 step 5.
func ComputeDigest(digestBasisBytes []byte) codec.ContentHash {
	return codec.Hash(codec.DomainBundleDigest, digestBasisBytes)
}

// sortedNames returns the artifact names in ASCII code-point ascending order.
func sortedNames(artifacts map[string]Artifact) []string {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
