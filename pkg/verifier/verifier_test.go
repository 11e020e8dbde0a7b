// Copyright 2025 Certen Protocol

package verifier

import (
	"testing"

	"github.com/certen/sterling/pkg/bundle"
	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/registry"
)

func buildValidLinearBundle(t *testing.T) *bundle.Bundle {
	t.Helper()

	opRegistry, err := registry.NewOperatorRegistry("operators.v1", []registry.OperatorEntry{
		{
			OpID:          carrier.NewCode32(1, 1, 1),
			Name:          "write_slot",
			Category:      registry.CategorySeek,
			ArgByteCount:  4,
			EffectKind:    registry.EffectWritesOneSlotFromArgs,
			CostModel:     "unit",
			ContractEpoch: "1",
		},
	})
	if err != nil {
		t.Fatalf("NewOperatorRegistry: %v", err)
	}
	operatorRegistryBytes, err := opRegistry.CanonicalBytes()
	if err != nil {
		t.Fatalf("CanonicalBytes: %v", err)
	}

	conceptRegistryBytes, err := codec.CanonicalJSONBytes(map[string]any{
		"concepts":       []any{},
		"schema_version": "concepts.v1",
	})
	if err != nil {
		t.Fatalf("canonicalize concept registry: %v", err)
	}

	fixtureBytes, err := codec.CanonicalJSONBytes(map[string]any{"world_id": "slotlattice"})
	if err != nil {
		t.Fatalf("canonicalize fixture: %v", err)
	}
	compilationManifestBytes, err := codec.CanonicalJSONBytes(map[string]any{"target": "slotlattice"})
	if err != nil {
		t.Fatalf("canonicalize compilation manifest: %v", err)
	}
	policySnapshotBytes, err := codec.CanonicalJSONBytes(map[string]any{"max_depth": 10})
	if err != nil {
		t.Fatalf("canonicalize policy snapshot: %v", err)
	}

	reportBytes, err := codec.CanonicalJSONBytes(map[string]any{
		"mode":                "linear",
		"world_id":            "slotlattice",
		"policy_digest":       bundle.ContentHashOf(policySnapshotBytes).String(),
		"fixture_digest":      bundle.ContentHashOf(fixtureBytes).String(),
		"operator_set_digest": bundle.ContentHashOf(operatorRegistryBytes).String(),
	})
	if err != nil {
		t.Fatalf("canonicalize report: %v", err)
	}

	b, err := bundle.Build([]bundle.ArtifactInput{
		{Name: bundle.ArtifactFixture, Content: fixtureBytes, Normative: true},
		{Name: bundle.ArtifactCompilationManifest, Content: compilationManifestBytes, Normative: true},
		{Name: bundle.ArtifactPolicySnapshot, Content: policySnapshotBytes, Normative: true},
		{Name: bundle.ArtifactVerificationReport, Content: reportBytes, Normative: true},
		{Name: bundle.ArtifactOperatorRegistry, Content: operatorRegistryBytes, Normative: true},
		{Name: bundle.ArtifactConceptRegistry, Content: conceptRegistryBytes, Normative: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return b
}

func TestVerifyBundle_ValidLinearBundlePasses(t *testing.T) {
	b := buildValidLinearBundle(t)
	report, err := VerifyBundle(b)
	if err != nil {
		t.Fatalf("VerifyBundle: %v", err)
	}
	if report.Mode != "linear" {
		t.Errorf("report.Mode = %q, want linear", report.Mode)
	}
}

func TestVerifyBundle_TamperedArtifactContentFailsContentHash(t *testing.T) {
	b := buildValidLinearBundle(t)
	a := b.Artifacts[bundle.ArtifactFixture]
	a.Content = []byte(`{"world_id":"tampered"}`)
	b.Artifacts[bundle.ArtifactFixture] = a

	_, err := VerifyBundle(b)
	verr, ok := err.(*VerifyError)
	if !ok || verr.Kind != ErrContentHashMismatch {
		t.Fatalf("expected ErrContentHashMismatch, got %v", err)
	}
}

func TestVerifyBundle_MissingRequiredArtifactRejected(t *testing.T) {
	b := buildValidLinearBundle(t)
	delete(b.Artifacts, bundle.ArtifactConceptRegistry)
	manifest, err := bundle.BuildManifestBytes(b.Artifacts)
	if err != nil {
		t.Fatalf("BuildManifestBytes: %v", err)
	}
	b.Manifest = manifest
	basis, err := bundle.BuildDigestBasisBytes(b.Artifacts)
	if err != nil {
		t.Fatalf("BuildDigestBasisBytes: %v", err)
	}
	b.DigestBasis = basis
	b.Digest = bundle.ComputeDigest(basis)

	_, err = VerifyBundle(b)
	verr, ok := err.(*VerifyError)
	if !ok || verr.Kind != ErrMissingRequiredArtifact {
		t.Fatalf("expected ErrMissingRequiredArtifact, got %v", err)
	}
}

func TestVerifyBundle_NonCanonicalArtifactRejected(t *testing.T) {
	b := buildValidLinearBundle(t)
	a := b.Artifacts[bundle.ArtifactFixture]
	a.Content = []byte(`{"world_id": "slotlattice", "extra_space":   1}`)
	b.Artifacts[bundle.ArtifactFixture] = a
	a.ContentHash = bundle.ContentHashOf(a.Content)
	b.Artifacts[bundle.ArtifactFixture] = a
	manifest, err := bundle.BuildManifestBytes(b.Artifacts)
	if err != nil {
		t.Fatalf("BuildManifestBytes: %v", err)
	}
	b.Manifest = manifest
	basis, err := bundle.BuildDigestBasisBytes(b.Artifacts)
	if err != nil {
		t.Fatalf("BuildDigestBasisBytes: %v", err)
	}
	b.DigestBasis = basis
	b.Digest = bundle.ComputeDigest(basis)

	_, err = VerifyBundle(b)
	verr, ok := err.(*VerifyError)
	if !ok || verr.Kind != ErrArtifactNotCanonical {
		t.Fatalf("expected ErrArtifactNotCanonical, got %v", err)
	}
}

func TestVerifyBundleWithProfile_CertSearchModeWithoutGraphRejected(t *testing.T) {
	b := buildValidLinearBundle(t)
	// Flip to search mode without providing a graph or tape — Base profile
	// catches the missing graph long before Cert-only checks would run.
	a := b.Artifacts[bundle.ArtifactVerificationReport]
	reportBytes, err := codec.CanonicalJSONBytes(map[string]any{
		"mode":                "search",
		"world_id":            "slotlattice",
		"policy_digest":       bundle.ContentHashOf(b.Artifacts[bundle.ArtifactPolicySnapshot].Content).String(),
		"fixture_digest":      bundle.ContentHashOf(b.Artifacts[bundle.ArtifactFixture].Content).String(),
		"operator_set_digest": bundle.ContentHashOf(b.Artifacts[bundle.ArtifactOperatorRegistry].Content).String(),
	})
	if err != nil {
		t.Fatalf("canonicalize report: %v", err)
	}
	a.Content = reportBytes
	a.ContentHash = bundle.ContentHashOf(reportBytes)
	b.Artifacts[bundle.ArtifactVerificationReport] = a
	manifest, err := bundle.BuildManifestBytes(b.Artifacts)
	if err != nil {
		t.Fatalf("BuildManifestBytes: %v", err)
	}
	b.Manifest = manifest
	basis, err := bundle.BuildDigestBasisBytes(b.Artifacts)
	if err != nil {
		t.Fatalf("BuildDigestBasisBytes: %v", err)
	}
	b.DigestBasis = basis
	b.Digest = bundle.ComputeDigest(basis)

	_, err = VerifyBundleWithProfile(b, ProfileCert)
	verr, ok := err.(*VerifyError)
	if !ok || verr.Kind != ErrSearchGraphArtifactMissing {
		t.Fatalf("expected ErrSearchGraphArtifactMissing, got %v", err)
	}
}
