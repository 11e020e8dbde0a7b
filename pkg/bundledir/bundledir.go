// Copyright 2025 Certen Protocol
//
// Bundle directory persistence: write/read an evidence bundle to/from a
// plain directory tree so a bundle can be handed to another process or
// archived without a database. Grounded on
// original_source/harness/src/bundle_dir.rs, re-targeted from that file's
// BTreeMap<String, Value> manifest shape to pkg/bundle's own map-keyed
// canonical manifest.
//
// Directory layout (one flat directory, no subdirectories):
//
//	<dir>/
//	  bundle_manifest.json      -- canonical JSON, full artifact listing
//	  bundle_digest_basis.json  -- canonical JSON, normative projection only
//	  bundle_digest.txt         -- ASCII digest string ("sha256:...")
//	  <artifact files, one per bundle.Artifact.Name>
//
// The directory path itself never enters any hash surface; file ordering on
// disk is irrelevant, the manifest's declared artifact set is authoritative.
package bundledir

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/certen/sterling/pkg/bundle"
	"github.com/certen/sterling/pkg/verifier"
)

const (
	manifestFilename    = "bundle_manifest.json"
	digestBasisFilename = "bundle_digest_basis.json"
	digestFilename      = "bundle_digest.txt"
	runIDFilename       = "run_id.txt"
)

var metadataFilenames = map[string]bool{
	manifestFilename:    true,
	digestBasisFilename: true,
	digestFilename:      true,
	runIDFilename:       true,
}

// Write renders bundle to dir, creating it if necessary. Every artifact file
// and all metadata files are written via write-temp-then-rename so a crash
// mid-write never leaves a partially-overwritten file in place.
//
// Alongside the three hashed metadata files, Write stamps run_id.txt with a
// freshly generated UUID: a non-normative correlation ID for this write, not
// this bundle's content — re-writing the same bundle to a new directory gets
// a new run_id. It never enters bundle.Manifest, DigestBasis, or Digest
// (spec.md §4.3's envelope-is-not-hashed rule extends to this on-disk
// trace marker), and Read tolerates but does not parse it.
func Write(b *bundle.Bundle, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Kind: WriteErrIO, Detail: "mkdir " + dir + ": " + err.Error()}
	}

	for _, name := range sortedArtifactNames(b.Artifacts) {
		if err := writeAtomic(filepath.Join(dir, name), b.Artifacts[name].Content); err != nil {
			return err
		}
	}

	if err := writeAtomic(filepath.Join(dir, manifestFilename), b.Manifest); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, digestBasisFilename), b.DigestBasis); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(dir, digestFilename), []byte(b.Digest.String())); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, runIDFilename), []byte(uuid.NewString()))
}

func writeAtomic(path string, content []byte) error {
	tmp := filepath.Join(filepath.Dir(path), ".tmp_"+filepath.Base(path))
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return &WriteError{Kind: WriteErrIO, Detail: "write " + tmp + ": " + err.Error()}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &WriteError{Kind: WriteErrIO, Detail: "rename " + tmp + " -> " + path + ": " + err.Error()}
	}
	return nil
}

// manifestDoc mirrors bundle.BuildManifestBytes's shape: schema_version plus
// a name-keyed artifact map, each entry carrying content_hash and normative.
type manifestDoc struct {
	Artifacts map[string]struct {
		ContentHash string `json:"content_hash"`
		Normative   bool   `json:"normative"`
	} `json:"artifacts"`
	SchemaVersion string `json:"schema_version"`
}

// Read loads a bundle directory written by Write, fail-closed: a missing
// declared artifact, an undeclared extra file, or a digest mismatch between
// the stored bundle_digest.txt and the recomputed digest all reject the
// read outright rather than returning a partial bundle.
func Read(dir string) (*bundle.Bundle, error) {
	manifestBytes, err := readRequired(dir, manifestFilename)
	if err != nil {
		return nil, err
	}
	digestBasisBytes, err := readRequired(dir, digestBasisFilename)
	if err != nil {
		return nil, err
	}
	digestBytes, err := readRequired(dir, digestFilename)
	if err != nil {
		return nil, err
	}

	var doc manifestDoc
	if err := json.Unmarshal(manifestBytes, &doc); err != nil {
		return nil, &ReadError{Kind: ReadErrManifestParse, Detail: err.Error()}
	}
	if doc.SchemaVersion != bundle.SchemaVersion {
		return nil, &ReadError{Kind: ReadErrManifestVersionMismatch, Detail: doc.SchemaVersion}
	}

	artifacts := make(map[string]bundle.Artifact, len(doc.Artifacts))
	declared := make(map[string]bool, len(doc.Artifacts))
	for name, entry := range doc.Artifacts {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, &ReadError{Kind: ReadErrMissingArtifact, Detail: name}
		}
		contentHash := bundle.ContentHashOf(content)
		if contentHash.String() != entry.ContentHash {
			return nil, &ReadError{Kind: ReadErrArtifactContentHashMismatch, Detail: name}
		}
		artifacts[name] = bundle.Artifact{
			Name:        name,
			Content:     content,
			ContentHash: contentHash,
			Normative:   entry.Normative,
		}
		declared[name] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ReadError{Kind: ReadErrIO, Detail: err.Error()}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if metadataFilenames[name] || declared[name] {
			continue
		}
		return nil, &ReadError{Kind: ReadErrExtraFile, Detail: name}
	}

	recomputed := bundle.ComputeDigest(digestBasisBytes)
	stored := strings.TrimSpace(string(digestBytes))
	if recomputed.String() != stored {
		return nil, &ReadError{Kind: ReadErrDigestMismatch, Detail: stored + " != " + recomputed.String()}
	}

	return &bundle.Bundle{
		Artifacts:   artifacts,
		Manifest:    manifestBytes,
		DigestBasis: digestBasisBytes,
		Digest:      recomputed,
	}, nil
}

func readRequired(dir, filename string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, &ReadError{Kind: ReadErrMissingMetadata, Detail: filename}
	}
	return content, nil
}

// VerifyDir reads dir and verifies it under profile, returning the decoded
// report on success. This is the primary offline verification entrypoint
// (spec.md §6's verify_bundle_dir), grounded on
// original_source/harness/src/bundle_dir.rs's verify_bundle_dir.
func VerifyDir(dir string, profile verifier.Profile) (*verifier.VerificationReport, error) {
	b, err := Read(dir)
	if err != nil {
		return nil, err
	}
	return verifier.VerifyBundleWithProfile(b, profile)
}

func sortedArtifactNames(artifacts map[string]bundle.Artifact) []string {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
