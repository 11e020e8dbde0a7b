// Copyright 2025 Certen Protocol
//
// Code32 — a 4-byte little-endian opaque operator/value code.
// Triple (domain, kind, local_id), totally ordered by its byte
// representation (spec.md §3).

package carrier

import (
	"encoding/binary"
	"strconv"
)

// Code32 packs (domain:u8, kind:u8, local_id:u16) into 4 little-endian
// bytes. Used for operator codes and identity-plane slot values alike.
type Code32 struct {
	domain  uint8
	kind    uint8
	localID uint16
}

// PaddingCode32 is the sentinel "unwritten" value: all-zero bytes.
var PaddingCode32 = Code32{}

// NewCode32 builds a Code32 from its three components.
func NewCode32(domain, kind uint8, localID uint16) Code32 {
	return Code32{domain: domain, kind: kind, localID: localID}
}

// Domain returns the domain byte.
func (c Code32) Domain() uint8 { return c.domain }

// Kind returns the kind byte.
func (c Code32) Kind() uint8 { return c.kind }

// LocalID returns the local id.
func (c Code32) LocalID() uint16 { return c.localID }

// IsZero reports whether c is the all-zero padding value.
func (c Code32) IsZero() bool { return c == PaddingCode32 }

// Bytes returns the 4-byte little-endian encoding: [domain, kind, localID_lo, localID_hi].
func (c Code32) Bytes() [4]byte {
	var b [4]byte
	b[0] = c.domain
	b[1] = c.kind
	binary.LittleEndian.PutUint16(b[2:4], c.localID)
	return b
}

// Code32FromBytes decodes a 4-byte little-endian Code32.
func Code32FromBytes(b [4]byte) Code32 {
	return Code32{
		domain:  b[0],
		kind:    b[1],
		localID: binary.LittleEndian.Uint16(b[2:4]),
	}
}

// Code32FromSlice decodes a Code32 from the first 4 bytes of b. It does not
// check the length: a shorter slice is zero-padded and bytes past the fourth
// are ignored, so callers validate length before calling.
func Code32FromSlice(b []byte) Code32 {
	var arr [4]byte
	copy(arr[:], b)
	return Code32FromBytes(arr)
}

// Less implements the total byte-representation ordering used for
// canonical-hash tiebreaking and registry/graph emission order.
func (c Code32) Less(other Code32) bool {
	a, b := c.Bytes(), other.Bytes()
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Compare returns -1, 0, or 1 per the byte-representation ordering.
func (c Code32) Compare(other Code32) int {
	a, b := c.Bytes(), other.Bytes()
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders "domain.kind.local_id" for diagnostics.
func (c Code32) String() string {
	return strconv.Itoa(int(c.domain)) + "." + strconv.Itoa(int(c.kind)) + "." + strconv.Itoa(int(c.localID))
}
