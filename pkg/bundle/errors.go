// Copyright 2025 Certen Protocol

package bundle

import "fmt"

// BuildErrKind enumerates producer-side assembly failures. Distinct from the
// verifier's error family (pkg/verifier) since these occur before any bundle
// exists to verify.
type BuildErrKind string

const (
	BuildErrDuplicateArtifactName BuildErrKind = "duplicate_artifact_name"
	BuildErrCanonicalization      BuildErrKind = "canonicalization"
)

// BuildError is the typed error family for Build.
type BuildError struct {
	Kind   BuildErrKind
	Name   string
	Detail string
}

func (e *BuildError) Error() string {
	switch e.Kind {
	case BuildErrDuplicateArtifactName:
		return fmt.Sprintf("bundle: duplicate artifact name %q", e.Name)
	default:
		return fmt.Sprintf("bundle: canonicalization failed: %s", e.Detail)
	}
}
