// Copyright 2025 Certen Protocol
//
// Manifest and digest basis rendering. The manifest covers every artifact;
// the digest basis covers only normative ones (spec.md §9's ordering rule).
// Both are canonical JSON so a verifier can recompute them byte-for-byte
// from the artifact set alone.

package bundle

import "github.com/certen/sterling/pkg/codec"

// BuildManifestBytes renders the manifest: schema_version plus every
// artifact's name, content hash, and normative flag, sorted by name.
func BuildManifestBytes(artifacts map[string]Artifact) ([]byte, error) {
	entries := make(map[string]any, len(artifacts))
	for _, name := range sortedNames(artifacts) {
		a := artifacts[name]
		entries[name] = map[string]any{
			"content_hash": a.ContentHash.String(),
			"normative":    a.Normative,
		}
	}
	return codec.CanonicalJSONBytes(map[string]any{
		"artifacts":      entries,
		"schema_version": SchemaVersion,
	})
}

// BuildDigestBasisBytes renders the digest basis: only normative artifacts,
// name to content hash, sorted by name. Dropping a non-normative artifact
// (or changing its content) never changes the bundle digest.
func BuildDigestBasisBytes(artifacts map[string]Artifact) ([]byte, error) {
	entries := make(map[string]any)
	for _, name := range sortedNames(artifacts) {
		a := artifacts[name]
		if !a.Normative {
			continue
		}
		entries[name] = a.ContentHash.String()
	}
	return codec.CanonicalJSONBytes(map[string]any{
		"artifacts": entries,
	})
}
