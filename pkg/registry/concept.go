// Copyright 2025 Certen Protocol
//
// Concept Registry — declares the domain values a world's identity plane
// can hold (as opposed to the operator registry, which declares the
// operators that mutate it). Both are normative bundle artifacts
// (spec.md §3, §6: "operator registry vs concept registry").

package registry

import (
	"fmt"
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
)

// ConceptEntry names one domain value a world's identity plane may carry,
// e.g. a codebreak peg color or a slotlattice key/value tag.
type ConceptEntry struct {
	ConceptID   carrier.Code32
	Name        string
	Description string
}

func (e ConceptEntry) validate() error {
	if e.Name == "" {
		return fmt.Errorf("registry: concept %s missing name", e.ConceptID)
	}
	return nil
}

// ConceptRegistry is an ordered mapping from concept id to ConceptEntry,
// keyed uniquely and canonicalized in Code32-byte order — structurally the
// same shape as OperatorRegistry but a distinct type, since the two
// registries are never interchangeable (spec.md §6).
type ConceptRegistry struct {
	schemaVersion string
	entries       map[carrier.Code32]ConceptEntry
	order         []carrier.Code32
}

// NewConceptRegistry builds a registry from entries, rejecting duplicate concept ids.
func NewConceptRegistry(schemaVersion string, entries []ConceptEntry) (*ConceptRegistry, error) {
	m := make(map[carrier.Code32]ConceptEntry, len(entries))
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, &OperatorRegistryError{Kind: "invalid_entry", OpID: e.ConceptID, Detail: err.Error()}
		}
		if _, exists := m[e.ConceptID]; exists {
			return nil, &OperatorRegistryError{Kind: "duplicate_op_code", OpID: e.ConceptID}
		}
		m[e.ConceptID] = e
	}
	order := make([]carrier.Code32, 0, len(m))
	for id := range m {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	return &ConceptRegistry{schemaVersion: schemaVersion, entries: m, order: order}, nil
}

// Get looks up a concept entry by id.
func (r *ConceptRegistry) Get(conceptID carrier.Code32) (ConceptEntry, bool) {
	e, ok := r.entries[conceptID]
	return e, ok
}

// Len returns the number of registered concepts.
func (r *ConceptRegistry) Len() int { return len(r.entries) }

// CanonicalBytes renders the registry as canonical JSON, matching the
// operator registry's shape: sorted top-level keys, entries in Code32-byte
// order, each entry's own keys alphabetical.
func (r *ConceptRegistry) CanonicalBytes() ([]byte, error) {
	entries := make([]map[string]any, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		b := e.ConceptID.Bytes()
		entries = append(entries, map[string]any{
			"concept_id":  []int{int(b[0]), int(b[1]), int(b[2]), int(b[3])},
			"description": e.Description,
			"name":        e.Name,
		})
	}
	value := map[string]any{
		"entries":        entries,
		"schema_version": r.schemaVersion,
	}
	bytes, err := codec.CanonicalJSONBytes(value)
	if err != nil {
		return nil, &OperatorRegistryError{Kind: "canonicalization", Detail: err.Error()}
	}
	return bytes, nil
}

// Digest is H(RegistrySnapshot, canonical_bytes).
func (r *ConceptRegistry) Digest() (codec.ContentHash, error) {
	b, err := r.CanonicalBytes()
	if err != nil {
		return codec.ContentHash{}, err
	}
	return codec.Hash(codec.DomainRegistrySnapshot, b), nil
}
