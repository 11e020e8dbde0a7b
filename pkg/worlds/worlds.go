// Copyright 2025 Certen Protocol
//
// Descriptor is the full external "world" collaborator surface spec.md §6
// declares abstractly: identity, shape, and the search.World move-generator
// contract together. pkg/worlds/slotlattice and pkg/worlds/codebreak are
// concrete implementations; pkg/harness accepts any Descriptor.
package worlds

import (
	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/registry"
	"github.com/certen/sterling/pkg/search"
)

// Descriptor is everything a producer run needs from a world: its stable
// identity and shape, the registries it declares, and the move-generator
// contract search.Run drives the search loop through.
type Descriptor interface {
	search.World

	WorldID() string
	Dimensions() (layerCount, slotCount, argSlotCount int, evidenceObligations []string)
	EncodePayload() ([]byte, error)
	SchemaDescriptorHash() (codec.ContentHash, error)
	Registry() (*registry.ConceptRegistry, error)
	OperatorRegistry() (*registry.OperatorRegistry, error)
}

// RootState allocates the all-Hole root ByteState a Descriptor's declared
// Dimensions require, the producer path's entry point (spec.md §2 data
// flow: "world -> encode_payload -> compile -> root ByteState").
func RootState(w Descriptor) (*carrier.ByteState, error) {
	layerCount, slotCount, _, _ := w.Dimensions()
	return carrier.NewByteState(layerCount, slotCount)
}
