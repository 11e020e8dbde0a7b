// Copyright 2025 Certen Protocol
//
// World construction from CLI flags: both supplied worlds (pkg/worlds/
// slotlattice, pkg/worlds/codebreak) take []carrier.Code32 rather than raw
// strings, so run-search and replay share one small rune<->Code32 mapping
// layer instead of duplicating it per subcommand.
package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/worlds"
	"github.com/certen/sterling/pkg/worlds/codebreak"
	"github.com/certen/sterling/pkg/worlds/slotlattice"
)

// valueDomain is the Code32 domain byte used for world-payload values
// (distinct from pkg/registry/kernel_operators.go's operator-code domain 1), matching the
// convention pkg/registry's concept-registry tests already use.
const valueDomain = 2

// alphabet assigns one Code32 per unique rune in s, ordered by rune value so
// the mapping is reproducible across invocations given the same --alphabet/
// --domain string.
func alphabet(s string) map[rune]carrier.Code32 {
	seen := make(map[rune]bool)
	var runes []rune
	for _, r := range s {
		if !seen[r] {
			seen[r] = true
			runes = append(runes, r)
		}
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })

	table := make(map[rune]carrier.Code32, len(runes))
	for i, r := range runes {
		table[r] = carrier.NewCode32(valueDomain, 1, uint16(i+1))
	}
	return table
}

func codesFromString(s string, table map[rune]carrier.Code32) ([]carrier.Code32, error) {
	out := make([]carrier.Code32, 0, len(s))
	for _, r := range s {
		c, ok := table[r]
		if !ok {
			return nil, fmt.Errorf("character %q not present in the alphabet/domain string", r)
		}
		out = append(out, c)
	}
	return out, nil
}

// buildWorldFlags are the --world/--target/--domain/--secret/--alphabet
// flags shared by run-search and replay (replay must reconstruct the exact
// world a bundle was produced against to re-derive its root state and
// operator registry).
type buildWorldFlags struct {
	kind     string
	worldID  string
	target   string
	domain   string
	secret   string
	alphabet string
}

func (f *buildWorldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "world", "slotlattice", "slotlattice or codebreak")
	cmd.Flags().StringVar(&f.worldID, "world-id", "cli-run", "world identity stamped into the bundle")
	cmd.Flags().StringVar(&f.target, "target", "abc", "slotlattice: the value each data slot must hold")
	cmd.Flags().StringVar(&f.domain, "domain", "abc", "slotlattice: the candidate value alphabet")
	cmd.Flags().StringVar(&f.secret, "secret", "abcd", "codebreak: the hidden peg sequence")
	cmd.Flags().StringVar(&f.alphabet, "alphabet", "abcdef", "codebreak: the peg-color alphabet")
}

func (f *buildWorldFlags) build() (worlds.Descriptor, error) {
	switch f.kind {
	case "slotlattice":
		table := alphabet(f.domain + f.target)
		target, err := codesFromString(f.target, table)
		if err != nil {
			return nil, fmt.Errorf("--target: %w", err)
		}
		domain, err := codesFromString(f.domain, table)
		if err != nil {
			return nil, fmt.Errorf("--domain: %w", err)
		}
		return slotlattice.New(f.worldID, target, domain), nil
	case "codebreak":
		table := alphabet(f.alphabet + f.secret)
		secret, err := codesFromString(f.secret, table)
		if err != nil {
			return nil, fmt.Errorf("--secret: %w", err)
		}
		alpha, err := codesFromString(f.alphabet, table)
		if err != nil {
			return nil, fmt.Errorf("--alphabet: %w", err)
		}
		return codebreak.New(f.worldID, secret, alpha), nil
	default:
		return nil, fmt.Errorf("--world: unknown world kind %q (want slotlattice or codebreak)", f.kind)
	}
}
