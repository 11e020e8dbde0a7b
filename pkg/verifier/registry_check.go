// Copyright 2025 Certen Protocol
//
// Operator registry coherence: reconstructs a pkg/registry.OperatorRegistry
// from the raw operator_registry.json bytes and re-renders it, so a
// duplicate op_id or invalid entry the registry's own constructor would
// reject cannot hide behind bytes that merely happen to be canonical JSON
// (the generic canonical-JSON check at step 3 can't catch that; only the
// typed registry's own validation can).

package verifier

import (
	"encoding/json"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/registry"
)

type operatorEntryJSON struct {
	OpID          []int  `json:"op_id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	ArgByteCount  int    `json:"arg_byte_count"`
	EffectKind    string `json:"effect_kind"`
	CostModel     string `json:"cost_model"`
	ContractEpoch string `json:"contract_epoch"`
}

type operatorRegistryJSON struct {
	Entries       []operatorEntryJSON `json:"entries"`
	SchemaVersion string              `json:"schema_version"`
}

func checkOperatorRegistryCoherence(content []byte) error {
	var doc operatorRegistryJSON
	if err := json.Unmarshal(content, &doc); err != nil {
		return &VerifyError{Kind: ErrOperatorRegistryIncoherent, Artifact: "operator_registry.json", Detail: err.Error()}
	}
	entries := make([]registry.OperatorEntry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		if len(e.OpID) != 4 {
			return &VerifyError{Kind: ErrOperatorRegistryIncoherent, Artifact: "operator_registry.json", Detail: "op_id is not a 4-byte array"}
		}
		var raw [4]byte
		for i, v := range e.OpID {
			raw[i] = byte(v)
		}
		entries = append(entries, registry.OperatorEntry{
			OpID:          carrier.Code32FromBytes(raw),
			Name:          e.Name,
			Category:      registry.OperatorCategory(e.Category),
			ArgByteCount:  e.ArgByteCount,
			EffectKind:    registry.EffectKind(e.EffectKind),
			CostModel:     e.CostModel,
			ContractEpoch: e.ContractEpoch,
		})
	}
	reg, err := registry.NewOperatorRegistry(doc.SchemaVersion, entries)
	if err != nil {
		return &VerifyError{Kind: ErrOperatorRegistryIncoherent, Artifact: "operator_registry.json", Detail: err.Error()}
	}
	rendered, err := reg.CanonicalBytes()
	if err != nil {
		return &VerifyError{Kind: ErrOperatorRegistryIncoherent, Artifact: "operator_registry.json", Detail: err.Error()}
	}
	if string(rendered) != string(content) {
		return &VerifyError{Kind: ErrOperatorRegistryIncoherent, Artifact: "operator_registry.json", Detail: "reconstructed registry does not byte-match stored artifact"}
	}
	return nil
}
