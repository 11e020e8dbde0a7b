// Copyright 2025 Certen Protocol

package verifier

// Profile selects which binding checks VerifyBundle runs. Base covers every
// bundle the producer can emit; Cert adds the stricter identity/evidence and
// tape<->graph equivalence checks a certification consumer requires
// (spec.md §4.6's "Cert:" steps).
type Profile int

const (
	// ProfileBase runs steps 1-16: integrity, structural, and report/graph
	// binding checks common to every bundle.
	ProfileBase Profile = iota
	// ProfileCert additionally requires tape presence and runs steps 17-22:
	// tape digest binding, tape parse, tape header bindings,
	// tape<->graph byte equivalence, the identity/evidence-plane binding
	// check (step 21), and the tool transcript binding (step 22).
	ProfileCert
)

func (p Profile) String() string {
	switch p {
	case ProfileCert:
		return "cert"
	default:
		return "base"
	}
}
