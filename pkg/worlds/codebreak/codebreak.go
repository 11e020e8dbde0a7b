// Copyright 2025 Certen Protocol
//
// codebreak — an epistemic probe-and-feedback puzzle (a Mastermind-style
// codebreaking game): GUESS proposes a code, FEEDBACK reports how many pegs
// match the hidden secret, DECLARE commits once feedback reports a perfect
// match. Grounded on original_source/harness/src/worlds/partial_obs.rs
// (the guess/feedback/declare move cycle) and kernel/src/operators/apply.rs
// for the three operators' precise contract, concretely instantiating
// search.World atop pkg/registry.EpistemicOperatorRegistry.
package codebreak

import (
	"sort"

	"github.com/certen/sterling/pkg/carrier"
	"github.com/certen/sterling/pkg/codec"
	"github.com/certen/sterling/pkg/kernel"
	"github.com/certen/sterling/pkg/registry"
	"github.com/certen/sterling/pkg/search"
)

const (
	secretLayer   = 0 // never read by kernel handlers; read only here, by the world
	guessLayer    = 1
	feedbackLayer = 2
	feedbackSlot  = 0
)

// World is a fixed-length peg-guessing puzzle. Secret is never written to
// op_args or enumerated as a candidate value directly — only FEEDBACK's
// derived match count ever leaves the world.
type World struct {
	id       string
	Secret   []carrier.Code32
	Alphabet []carrier.Code32
}

// New builds a codebreak world of the given secret over alphabet, with three
// layers whose slot count is secret's length plus one (the trailing marker
// slot on every layer).
func New(id string, secret, alphabet []carrier.Code32) *World {
	return &World{id: id, Secret: secret, Alphabet: alphabet}
}

func (w *World) codeLength() int { return len(w.Secret) }

// WorldID implements the spec.md §6 world_id() accessor.
func (w *World) WorldID() string { return w.id }

// Dimensions reports the three-layer (secret/guess/feedback) carrier shape
// and the tool-transcript evidence obligation codebreak opts into
// (SPEC_FULL.md §4's tool transcript supplement).
func (w *World) Dimensions() (layerCount, slotCount, argSlotCount int, evidenceObligations []string) {
	return 3, w.codeLength() + 1, w.codeLength(), []string{"tool_transcript_equivalence_v1"}
}

// EncodePayload renders the alphabet (never the secret) as the fixture's
// canonical JSON payload; the secret stays out of every hashed surface
// except indirectly, through the feedback values it produces.
func (w *World) EncodePayload() ([]byte, error) {
	return codec.CanonicalJSONBytes(map[string]any{
		"world_id":    w.id,
		"code_length": w.codeLength(),
		"alphabet":    code32Strings(w.Alphabet),
	})
}

func code32Strings(cs []carrier.Code32) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// SchemaDescriptorHash is H(HarnessFixture, canonical_schema_basis_bytes).
func (w *World) SchemaDescriptorHash() (codec.ContentHash, error) {
	basis, err := codec.CanonicalJSONBytes(map[string]any{
		"kind":        "codebreak.v1",
		"code_length": w.codeLength(),
	})
	if err != nil {
		return codec.ContentHash{}, err
	}
	return codec.Hash(codec.DomainHarnessFixture, basis), nil
}

// Registry declares the alphabet values plus the kernel's solved marker.
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
	for _, v := range w.Alphabet {
		add(v, "codebreak:peg:"+v.String())
	}
	for i := 0; i <= w.codeLength(); i++ {
		add(carrier.NewCode32(2, 0, uint16(i)), "codebreak:feedback_count")
	}
	add(registry.SolvedMarker, "codebreak:solved_marker")
	return registry.NewConceptRegistry("v1", entries)
}

// OperatorRegistry is the full transactional + epistemic operator set; the
// transactional operators are unused by codebreak's own move generator but
// remain declared (spec.md §6's registry is a fixed bundle-wide contract,
// not a per-world subset).
func (w *World) OperatorRegistry() (*registry.OperatorRegistry, error) {
	return registry.FullOperatorRegistry(w.codeLength())
}

// EnumerateCandidates proposes, in priority order: nothing once declared;
// a FEEDBACK reporting the current guess's match count once a guess is
// pending; a DECLARE once feedback reports a perfect match; otherwise one
// GUESS candidate per alphabet^codeLength combination.
func (w *World) EnumerateCandidates(state *carrier.ByteState, reg search.OperatorContains) []search.CandidateAction {
	declared, err := w.isDeclared(state)
	if err != nil || declared {
		return nil
	}

	guessed, err := w.hasGuess(state)
	if err != nil {
		return nil
	}
	if !guessed {
		return w.proposeGuesses()
	}

	fedBack, matches, err := w.feedbackGiven(state)
	if err != nil {
		return nil
	}
	if !fedBack {
		return w.proposeFeedback(state)
	}
	if matches == w.codeLength() {
		return w.proposeDeclare(state)
	}
	return w.proposeGuesses()
}

func (w *World) isDeclared(state *carrier.ByteState) (bool, error) {
	_, slotCount := state.Dimensions()
	id, status, err := state.Get(guessLayer, slotCount-1)
	if err != nil {
		return false, err
	}
	return status != carrier.StatusHole && id == registry.SolvedMarker, nil
}

func (w *World) hasGuess(state *carrier.ByteState) (bool, error) {
	for slot := 0; slot < w.codeLength(); slot++ {
		unwritten, err := state.IsUnwritten(guessLayer, slot)
		if err != nil {
			return false, err
		}
		if unwritten {
			return false, nil
		}
	}
	return true, nil
}

func (w *World) feedbackGiven(state *carrier.ByteState) (given bool, matches int, err error) {
	unwritten, err := state.IsUnwritten(feedbackLayer, feedbackSlot)
	if err != nil {
		return false, 0, err
	}
	if unwritten {
		return false, 0, nil
	}
	id, _, err := state.Get(feedbackLayer, feedbackSlot)
	if err != nil {
		return false, 0, err
	}
	return true, int(id.LocalID()), nil
}

func (w *World) proposeGuesses() []search.CandidateAction {
	combos := cartesian(w.Alphabet, w.codeLength())
	out := make([]search.CandidateAction, 0, len(combos))
	for _, combo := range combos {
		args := kernel.GuessArgs(guessLayer, 0, combo)
		out = append(out, search.CandidateAction{
			OpCode:        registry.OpGuess,
			OpArgs:        args,
			CanonicalHash: canonicalHash(registry.OpGuess, args),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalHash < out[j].CanonicalHash })
	return out
}

func (w *World) proposeFeedback(state *carrier.ByteState) []search.CandidateAction {
	matches := 0
	for slot, secretValue := range w.Secret {
		guessValue, _, err := state.Get(guessLayer, slot)
		if err == nil && guessValue == secretValue {
			matches++
		}
	}
	value := carrier.NewCode32(2, 0, uint16(matches))
	args := kernel.FeedbackArgs(feedbackLayer, feedbackSlot, value)
	return []search.CandidateAction{{
		OpCode:        registry.OpFeedback,
		OpArgs:        args,
		CanonicalHash: canonicalHash(registry.OpFeedback, args),
	}}
}

func (w *World) proposeDeclare(state *carrier.ByteState) []search.CandidateAction {
	guess := make([]carrier.Code32, w.codeLength())
	for slot := range guess {
		v, _, err := state.Get(guessLayer, slot)
		if err != nil {
			return nil
		}
		guess[slot] = v
	}
	_, slotCount := state.Dimensions()
	args := kernel.DeclareArgs(guessLayer, uint32(slotCount-1), guess)
	return []search.CandidateAction{{
		OpCode:        registry.OpDeclare,
		OpArgs:        args,
		CanonicalHash: canonicalHash(registry.OpDeclare, args),
	}}
}

func cartesian(alphabet []carrier.Code32, length int) [][]carrier.Code32 {
	if length == 0 {
		return [][]carrier.Code32{{}}
	}
	rest := cartesian(alphabet, length-1)
	out := make([][]carrier.Code32, 0, len(alphabet)*len(rest))
	for _, v := range alphabet {
		for _, r := range rest {
			combo := make([]carrier.Code32, 0, length)
			combo = append(combo, v)
			combo = append(combo, r...)
			out = append(out, combo)
		}
	}
	return out
}

func canonicalHash(opCode carrier.Code32, opArgs []byte) string {
	opBytes := opCode.Bytes()
	return codec.Hash(codec.DomainSearchCandidate, opBytes[:], opArgs).HexDigest()
}

// IsGoal reports whether the guess layer's marker slot carries the solved
// marker — i.e. a DECLARE has committed a perfect-match guess.
func (w *World) IsGoal(state *carrier.ByteState) bool {
	declared, err := w.isDeclared(state)
	return err == nil && declared
}
