// Copyright 2025 Certen Protocol
//
// slotlattice — a direct, non-epistemic transactional-KV puzzle: fill every
// data slot on layer 0 from a small value domain, then COMMIT. Grounded on
// original_source/harness/src/worlds/slot_lattice_search.rs (move proposal
// over a KV lattice) and transactional_kv_store.rs (the stage/commit/
// rollback discipline), concretely instantiating search.World atop
// pkg/registry's well-known SET_SLOT/STAGE/COMMIT/ROLLBACK operators.
package slotlattice

import (
	"fmt"
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/kernel"
	"github.com/certen/sterling/pkg/registry"
	"github.com/certen/sterling/pkg/search"
)

const dataLayer = 0

// World is a transactional key-value lattice: Target names the value each
// data slot (0..len(Target)-1) must hold before the lattice is committed.
// The last slot of the layer (carrier.ByteState.MarkerSlot) is the kernel's
// txn_marker, written only by COMMIT/ROLLBACK.
type World struct {
	id     string
	Target []carrier.Code32
	Domain []carrier.Code32
}

// New builds a slotlattice world. slotCount is len(target)+1 (the trailing
// marker slot); domain is the set of values candidates may try per data
// slot (must include every value in target for the puzzle to be solvable).
func New(id string, target, domain []carrier.Code32) *World {
	return &World{id: id, Target: target, Domain: domain}
}

// WorldID implements the spec.md §6 world_id() accessor.
func (w *World) WorldID() string { return w.id }

// Dimensions reports the one-layer, (len(Target)+1)-slot carrier shape this
// world requires, plus its zero evidence obligations (slotlattice carries
// no Cert-only artifact).
func (w *World) Dimensions() (layerCount, slotCount, argSlotCount int, evidenceObligations []string) {
	return 1, len(w.Target) + 1, 0, nil
}

// EncodePayload renders the target/domain fixture as canonical JSON — the
// bytes hashed into compilation_manifest.json's payload_hash.
func (w *World) EncodePayload() ([]byte, error) {
	return codec.CanonicalJSONBytes(map[string]any{
		"world_id": w.id,
		"target":   code32Strings(w.Target),
		"domain":   code32Strings(w.Domain),
	})
}

func code32Strings(cs []carrier.Code32) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// SchemaDescriptorHash is H(HarnessFixture, canonical_schema_basis_bytes)
// (spec.md §6): a stable digest over the world's shape, independent of the
// particular Target/Domain values of one run.
func (w *World) SchemaDescriptorHash() (codec.ContentHash, error) {
	basis, err := codec.CanonicalJSONBytes(map[string]any{
		"kind":       "slotlattice.v1",
		"slot_count": len(w.Target) + 1,
	})
	if err != nil {
		return codec.ContentHash{}, err
	}
	return codec.Hash(codec.DomainHarnessFixture, basis), nil
}

// Registry builds the concept registry declaring the identity values this
// world's data plane may hold: the target/domain values plus the kernel's
// commit/rollback markers.
func (w *World) Registry() (*registry.ConceptRegistry, error) {
	seen := make(map[carrier.Code32]bool)
	var entries []registry.ConceptEntry
	add := func(c carrier.Code32, name string) {
		if seen[c] {
			return
		}
		seen[c] = true
		entries = append(entries, registry.ConceptEntry{ConceptID: c, Name: name})
	}
	for _, v := range w.Domain {
		add(v, fmt.Sprintf("slotlattice:value:%s", v.String()))
	}
	add(kernel.CommitMarker, "slotlattice:txn_marker:commit")
	add(kernel.RollbackMarker, "slotlattice:txn_marker:rollback")
	return registry.NewConceptRegistry("v1", entries)
}

// OperatorRegistry is the transactional operator set this world exercises.
func (w *World) OperatorRegistry() (*registry.OperatorRegistry, error) {
	return registry.KernelOperatorRegistry()
}

// EnumerateCandidates proposes SET_SLOT on the first unwritten data slot,
// one candidate per domain value, or a single COMMIT once every data slot
// is written and the marker is still open.
func (w *World) EnumerateCandidates(state *carrier.ByteState, reg search.OperatorContains) []search.CandidateAction {
	_, slotCount := state.Dimensions()
	markerSlot := slotCount - 1

	for slot := 0; slot < markerSlot; slot++ {
		unwritten, err := state.IsUnwritten(dataLayer, slot)
		if err == nil && unwritten {
			return w.proposeSlotValues(slot)
		}
	}

	_, markerStatus, err := state.Get(dataLayer, markerSlot)
	if err == nil && markerStatus == carrier.StatusHole {
		args := kernel.CommitArgs(dataLayer)
		return []search.CandidateAction{{
			OpCode:        registry.OpCommit,
			OpArgs:        args,
			CanonicalHash: canonicalHash(registry.OpCommit, args),
		}}
	}

	return nil
}

func (w *World) proposeSlotValues(slot int) []search.CandidateAction {
	out := make([]search.CandidateAction, 0, len(w.Domain))
	for _, v := range w.Domain {
		args := kernel.SetSlotArgs(dataLayer, uint32(slot), v)
		out = append(out, search.CandidateAction{
			OpCode:        registry.OpSetSlot,
			OpArgs:        args,
			CanonicalHash: canonicalHash(registry.OpSetSlot, args),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalHash < out[j].CanonicalHash })
	return out
}

func canonicalHash(opCode carrier.Code32, opArgs []byte) string {
	opBytes := opCode.Bytes()
	return codec.Hash(codec.DomainSearchCandidate, opBytes[:], opArgs).HexDigest()
}

// IsGoal reports whether every data slot holds its target value and the
// transaction has been committed.
func (w *World) IsGoal(state *carrier.ByteState) bool {
	_, slotCount := state.Dimensions()
	markerSlot := slotCount - 1

	for slot, target := range w.Target {
		id, _, err := state.Get(dataLayer, slot)
		if err != nil || id != target {
			return false
		}
	}
	id, status, err := state.Get(dataLayer, markerSlot)
	if err != nil || status == carrier.StatusHole || id != kernel.CommitMarker {
		return false
	}
	return true
}
