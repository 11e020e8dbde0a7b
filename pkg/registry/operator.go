// Copyright 2025 Certen Protocol
//
// Operator Registry — the normative operator catalog.
// Maps Code32 op_id to its declared contract (name, category, argument
// layout, effect kind). Content-addressed via canonical JSON for inclusion
// as a normative bundle artifact (operator_registry.json). The registry is
// the contract surface; pkg/kernel's dispatch table is the implementation
// surface (spec.md §3, §4.2).

package registry

import (
	"fmt"
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
)

// OperatorCategory classifies an operator for diagnostics and transcript
// rendering. Never used for routing (op_id alone routes).
type OperatorCategory string

const (
	CategorySeek     OperatorCategory = "seek"
	CategoryMemorize OperatorCategory = "memorize"
	CategoryPrune    OperatorCategory = "prune"
	CategoryControl  OperatorCategory = "control"
)

// EffectKind declares how an operator's effects can be mechanically
// validated post-apply (spec.md §4.2).
type EffectKind string

const (
	EffectWritesOneSlotFromArgs EffectKind = "writes_one_slot_from_args"
	EffectStagesOneSlot         EffectKind = "stages_one_slot"
	EffectCommitsTransaction    EffectKind = "commits_transaction"
	EffectRollsBackTransaction  EffectKind = "rolls_back_transaction"
	EffectWritesGuess           EffectKind = "writes_guess"
	EffectWritesFeedback        EffectKind = "writes_feedback"
	EffectDeclaresSolution      EffectKind = "declares_solution"
)

// IsValid reports whether k is one of the seven declared effect kinds.
func (k EffectKind) IsValid() bool {
	switch k {
	case EffectWritesOneSlotFromArgs, EffectStagesOneSlot, EffectCommitsTransaction,
		EffectRollsBackTransaction, EffectWritesGuess, EffectWritesFeedback, EffectDeclaresSolution:
		return true
	default:
		return false
	}
}

// OperatorEntry is a single row in the operator registry: an operator's
// declared contract.
type OperatorEntry struct {
	OpID           carrier.Code32
	Name           string // diagnostic only, not routing
	Category       OperatorCategory
	ArgByteCount   int
	EffectKind     EffectKind
	CostModel      string
	ContractEpoch  string
}

func (e OperatorEntry) validate() error {
	if !e.EffectKind.IsValid() {
		return fmt.Errorf("registry: operator %s has unknown effect kind %q", e.OpID, e.EffectKind)
	}
	if e.ArgByteCount < 0 {
		return fmt.Errorf("registry: operator %s has negative arg_byte_count", e.OpID)
	}
	if e.Name == "" {
		return fmt.Errorf("registry: operator %s missing name", e.OpID)
	}
	return nil
}

// OperatorRegistryError is the typed error family for registry construction
// and serialization failures.
type OperatorRegistryError struct {
	Kind   string // "duplicate_op_code" | "invalid_entry" | "canonicalization"
	OpID   carrier.Code32
	Detail string
}

func (e *OperatorRegistryError) Error() string {
	switch e.Kind {
	case "duplicate_op_code":
		return fmt.Sprintf("registry: duplicate op_id %s", e.OpID)
	case "invalid_entry":
		return fmt.Sprintf("registry: invalid entry for op_id %s: %s", e.OpID, e.Detail)
	default:
		return fmt.Sprintf("registry: canonicalization failed: %s", e.Detail)
	}
}

// OperatorRegistry is an ordered mapping from op_id to OperatorEntry, keyed
// uniquely and canonicalized in Code32-byte order.
type OperatorRegistry struct {
	schemaVersion string
	entries       map[carrier.Code32]OperatorEntry
	order         []carrier.Code32 // sorted by Code32 byte order
}

// NewOperatorRegistry builds a registry from entries, rejecting duplicate op_ids.
func NewOperatorRegistry(schemaVersion string, entries []OperatorEntry) (*OperatorRegistry, error) {
	m := make(map[carrier.Code32]OperatorEntry, len(entries))
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, &OperatorRegistryError{Kind: "invalid_entry", OpID: e.OpID, Detail: err.Error()}
		}
		if _, exists := m[e.OpID]; exists {
			return nil, &OperatorRegistryError{Kind: "duplicate_op_code", OpID: e.OpID}
		}
		m[e.OpID] = e
	}
	order := make([]carrier.Code32, 0, len(m))
	for id := range m {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	return &OperatorRegistry{schemaVersion: schemaVersion, entries: m, order: order}, nil
}

// Get looks up an entry by op_code.
func (r *OperatorRegistry) Get(opCode carrier.Code32) (OperatorEntry, bool) {
	e, ok := r.entries[opCode]
	return e, ok
}

// Contains reports whether op_code is registered.
func (r *OperatorRegistry) Contains(opCode carrier.Code32) bool {
	_, ok := r.entries[opCode]
	return ok
}

// Len returns the number of registered operators.
func (r *OperatorRegistry) Len() int { return len(r.entries) }

// Entries returns all entries in canonical (Code32 byte) order.
func (r *OperatorRegistry) Entries() []OperatorEntry {
	out := make([]OperatorEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// CanonicalBytes renders the registry as canonical JSON: sorted top-level
// keys, entries array in Code32-byte order.
func (r *OperatorRegistry) CanonicalBytes() ([]byte, error) {
	entries := make([]map[string]any, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		b := e.OpID.Bytes()
		entries = append(entries, map[string]any{
			"arg_byte_count": e.ArgByteCount,
			"category":       string(e.Category),
			"contract_epoch": e.ContractEpoch,
			"cost_model":     e.CostModel,
			"effect_kind":    string(e.EffectKind),
			"name":           e.Name,
			"op_id":          []int{int(b[0]), int(b[1]), int(b[2]), int(b[3])},
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
func (r *OperatorRegistry) Digest() (codec.ContentHash, error) {
	b, err := r.CanonicalBytes()
	if err != nil {
		return codec.ContentHash{}, err
	}
	return codec.Hash(codec.DomainRegistrySnapshot, b), nil
}
