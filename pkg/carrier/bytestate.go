// Copyright 2025 Certen Protocol
//
// ByteState — the two-plane slot grid carrier.
// An identity plane (one Code32 per slot) and a status plane (one
// SlotStatus byte per slot), dimensions (layer_count, slot_count) fixed at
// construction (spec.md §3). Owned by its current frame: apply() produces a
// new owned state, never mutates one in place that a caller still holds.

package carrier

import (
	"fmt"

	"github.com/certen/sterling/pkg/codec"
)

// SlotStatus is the discriminant of a status-plane byte.
type SlotStatus uint8

const (
	// StatusHole is the unwritten status. A slot is "unwritten" iff its
	// identity bytes are all-zero AND its status is Hole.
	StatusHole SlotStatus = 0
	// StatusShadow marks a slot written speculatively by the environment
	// (e.g. partial-observation feedback) without agent commitment.
	StatusShadow SlotStatus = 64
	// StatusProvisional marks a slot written once, pending transaction
	// commit/rollback or already final for non-transactional layers.
	StatusProvisional SlotStatus = 128
)

// IsValid reports whether s is one of the three known discriminants.
func (s SlotStatus) IsValid() bool {
	switch s {
	case StatusHole, StatusShadow, StatusProvisional:
		return true
	default:
		return false
	}
}

// ByteState is the typed state carrier: a fixed-size identity plane
// (layer_count * slot_count Code32 values) and status plane (layer_count *
// slot_count SlotStatus bytes).
type ByteState struct {
	layerCount int
	slotCount  int
	identity   []Code32    // len == layerCount*slotCount, row-major (layer, slot)
	status     []SlotStatus // len == layerCount*slotCount
}

// NewByteState allocates an all-Hole, all-zero-identity state with the given
// dimensions.
func NewByteState(layerCount, slotCount int) (*ByteState, error) {
	if layerCount < 0 || slotCount < 0 {
		return nil, fmt.Errorf("carrier: negative dimension (layers=%d, slots=%d)", layerCount, slotCount)
	}
	n := layerCount * slotCount
	return &ByteState{
		layerCount: layerCount,
		slotCount:  slotCount,
		identity:   make([]Code32, n),
		status:     make([]SlotStatus, n),
	}, nil
}

// Dimensions returns (layer_count, slot_count).
func (s *ByteState) Dimensions() (int, int) { return s.layerCount, s.slotCount }

func (s *ByteState) index(layer, slot int) (int, error) {
	if layer < 0 || layer >= s.layerCount || slot < 0 || slot >= s.slotCount {
		return 0, fmt.Errorf("carrier: slot (%d,%d) out of bounds for (%d,%d)", layer, slot, s.layerCount, s.slotCount)
	}
	return layer*s.slotCount + slot, nil
}

// Get returns the identity and status of (layer, slot).
func (s *ByteState) Get(layer, slot int) (Code32, SlotStatus, error) {
	i, err := s.index(layer, slot)
	if err != nil {
		return Code32{}, 0, err
	}
	return s.identity[i], s.status[i], nil
}

// IsUnwritten reports whether (layer, slot) is Hole with zero identity.
func (s *ByteState) IsUnwritten(layer, slot int) (bool, error) {
	id, st, err := s.Get(layer, slot)
	if err != nil {
		return false, err
	}
	return id.IsZero() && st == StatusHole, nil
}

// Clone returns a deep, independently-owned copy. apply() always produces a
// Clone()-then-mutate result; the input state is never touched.
func (s *ByteState) Clone() *ByteState {
	out := &ByteState{
		layerCount: s.layerCount,
		slotCount:  s.slotCount,
		identity:   make([]Code32, len(s.identity)),
		status:     make([]SlotStatus, len(s.status)),
	}
	copy(out.identity, s.identity)
	copy(out.status, s.status)
	return out
}

// set mutates (layer, slot) on a state this caller owns exclusively (only
// called on a freshly Clone()'d state inside a dispatch handler).
func (s *ByteState) set(layer, slot int, id Code32, st SlotStatus) error {
	i, err := s.index(layer, slot)
	if err != nil {
		return err
	}
	s.identity[i] = id
	s.status[i] = st
	return nil
}

// IdentityBytes returns the identity plane as layer_count*slot_count*4 bytes,
// row-major, each slot little-endian Code32. Used for fingerprinting and
// hashing; never mutated by the caller (owned, freshly allocated).
func (s *ByteState) IdentityBytes() []byte {
	out := make([]byte, 0, len(s.identity)*4)
	for _, c := range s.identity {
		b := c.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// StatusBytes returns the status plane as layer_count*slot_count bytes.
func (s *ByteState) StatusBytes() []byte {
	out := make([]byte, len(s.status))
	for i, st := range s.status {
		out[i] = byte(st)
	}
	return out
}

// SetIdentityBytes overwrites the identity plane from exactly
// layer_count*slot_count*4 bytes (row-major, little-endian Code32 per slot).
func (s *ByteState) SetIdentityBytes(b []byte) error {
	if len(b) != len(s.identity)*4 {
		return fmt.Errorf("carrier: identity bytes length %d != expected %d", len(b), len(s.identity)*4)
	}
	for i := range s.identity {
		s.identity[i] = Code32FromSlice(b[i*4 : i*4+4])
	}
	return nil
}

// SetStatusBytes overwrites the status plane from exactly
// layer_count*slot_count bytes, validating each discriminant.
func (s *ByteState) SetStatusBytes(b []byte) error {
	if len(b) != len(s.status) {
		return fmt.Errorf("carrier: status bytes length %d != expected %d", len(b), len(s.status))
	}
	out := make([]SlotStatus, len(b))
	for i, raw := range b {
		st := SlotStatus(raw)
		if !st.IsValid() {
			return fmt.Errorf("carrier: invalid SlotStatus byte 0x%02x at index %d", raw, i)
		}
		out[i] = st
	}
	s.status = out
	return nil
}

// Equal reports bitwise equality over both planes.
func (s *ByteState) Equal(other *ByteState) bool {
	if s.layerCount != other.layerCount || s.slotCount != other.slotCount {
		return false
	}
	for i := range s.identity {
		if s.identity[i] != other.identity[i] || s.status[i] != other.status[i] {
			return false
		}
	}
	return true
}

// Fingerprint is H(SearchNode, identity_bytes) — the dedup key under the
// IdentityOnly dedup policy.
func (s *ByteState) Fingerprint() codec.ContentHash {
	return codec.Hash(codec.DomainSearchNode, s.IdentityBytes())
}

// DiffSlot is one (layer, slot) location whose identity and/or status
// differs between two ByteState snapshots of identical dimensions.
type DiffSlot struct {
	Layer, Slot     int
	IdentityChanged bool
	StatusChanged   bool
	OldIdentity     Code32
	NewIdentity     Code32
	OldStatus       SlotStatus
	NewStatus       SlotStatus
}

// Diff enumerates every slot where before and after differ, in row-major
// (layer, slot) order. Used by apply()'s post-apply effect validation.
func Diff(before, after *ByteState) ([]DiffSlot, error) {
	if before.layerCount != after.layerCount || before.slotCount != after.slotCount {
		return nil, fmt.Errorf("carrier: cannot diff states of differing dimensions")
	}
	var out []DiffSlot
	for layer := 0; layer < before.layerCount; layer++ {
		for slot := 0; slot < before.slotCount; slot++ {
			i := layer*before.slotCount + slot
			idChanged := before.identity[i] != after.identity[i]
			stChanged := before.status[i] != after.status[i]
			if idChanged || stChanged {
				out = append(out, DiffSlot{
					Layer: layer, Slot: slot,
					IdentityChanged: idChanged, StatusChanged: stChanged,
					OldIdentity: before.identity[i], NewIdentity: after.identity[i],
					OldStatus: before.status[i], NewStatus: after.status[i],
				})
			}
		}
	}
	return out, nil
}

// IdentityDiffCount reports how many slots changed identity between before and after.
func IdentityDiffCount(before, after *ByteState) (int, error) {
	d, err := Diff(before, after)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range d {
		if s.IdentityChanged {
			n++
		}
	}
	return n, nil
}

// StatusDiffCount reports how many slots changed status between before and after.
func StatusDiffCount(before, after *ByteState) (int, error) {
	d, err := Diff(before, after)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range d {
		if s.StatusChanged {
			n++
		}
	}
	return n, nil
}

// LayerHasStatus reports whether any slot on layer (other than excludeSlot)
// currently has the given status. Used by CommitsTransaction's
// non-empty-commit precondition.
func (s *ByteState) LayerHasStatus(layer int, status SlotStatus, excludeSlot int) (bool, error) {
	if layer < 0 || layer >= s.layerCount {
		return false, fmt.Errorf("carrier: layer %d out of bounds for %d layers", layer, s.layerCount)
	}
	for slot := 0; slot < s.slotCount; slot++ {
		if slot == excludeSlot {
			continue
		}
		i := layer*s.slotCount + slot
		if s.status[i] == status {
			return true, nil
		}
	}
	return false, nil
}

// Set writes (layer, slot) on a state the caller owns exclusively — exported
// for use by kernel dispatch handlers operating on a freshly Clone()'d state.
func (s *ByteState) Set(layer, slot int, id Code32, status SlotStatus) error {
	return s.set(layer, slot, id, status)
}

// MarkerSlot returns the index of a layer's "marker slot", which is always
// the last slot (slot count minus one).
func (s *ByteState) MarkerSlot() int { return s.slotCount - 1 }
