// Copyright 2025 Certen Protocol
//
// Canonical JSON Encoding
// Deterministic, total encoding of accepted JSON values: sorted object keys,
// no insignificant whitespace, single numeric form. Every normative bundle
// artifact is serialized through this package before it is hashed.

package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

func parseFloat(lit string) (float64, error) {
	return strconv.ParseFloat(lit, 64)
}

// CanonicalJSONBytes encodes v as canonical JSON bytes: object keys sorted
// ascending by Unicode code point, compact separators, and a single numeric
// form. It is a pure, total function on accepted values — it fails only on
// unrepresentable values (non-finite floats, non-string map keys).
func CanonicalJSONBytes(v any) ([]byte, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("codec: canonicalize: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm); err != nil {
		return nil, fmt.Errorf("codec: encode canonical value: %w", err)
	}
	// json.Encoder.Encode appends a trailing newline; canonical bytes must not.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CanonicalizeJSON re-encodes raw JSON bytes into canonical form. Used by the
// verifier to check that a stored artifact is already canonical (spec.md
// §4.6 step 3: re-canonicalize, compare).
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: parse json: %w", err)
	}
	return CanonicalJSONBytes(v)
}

// normalize walks an arbitrary decoded value (map[string]any / []any /
// json.Number / string / bool / nil, or a Go struct via a json.Marshal round
// trip) into a canonical-orderable shape. Maps become ordered key/value
// pairs; everything else passes through after validation.
func normalize(v any) (any, error) {
	// Route arbitrary Go values (structs, typed maps) through json.Marshal
	// first so we normalize a single decoded shape.
	switch v.(type) {
	case map[string]any, []any, json.Number, string, bool, nil, float64:
		// already a decoded JSON shape
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal input: %w", err)
		}
		var decoded any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode marshaled input: %w", err)
		}
		v = decoded
	}
	return normalizeDecoded(v)
}

func normalizeDecoded(v any) (any, error) {
	switch vv := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := orderedObject{keys: keys, values: make(map[string]any, len(vv))}
		for _, k := range keys {
			nv, err := normalizeDecoded(vv[k])
			if err != nil {
				return nil, err
			}
			ordered.values[k] = nv
		}
		return ordered, nil
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			nv, err := normalizeDecoded(e)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case json.Number:
		return canonicalizeNumber(vv.String())
	case float64:
		return canonicalizeNumber(formatFloat(vv))
	default:
		return v, nil
	}
}

// canonicalizeNumber reduces a decimal number literal to its single
// canonical form: integral values drop any fractional suffix and leading
// zeros; everything else is re-rendered via its minimal float64 repr. NaN
// and Inf are rejected — they have no canonical JSON representation.
func canonicalizeNumber(lit string) (any, error) {
	f, err := parseFloat(lit)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", lit, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %q not representable", lit)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return canonicalNumber(fmt.Sprintf("%d", int64(f))), nil
	}
	return canonicalNumber(formatFloat(f)), nil
}

// orderedObject marshals as a JSON object preserving the explicit key order
// captured at normalization time, instead of Go's map iteration order.
type orderedObject struct {
	keys   []string
	values map[string]any
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalNumber emits the single canonical numeric form: integers carry no
// trailing zeros or decimal point; all other numbers use their minimal
// decimal repr via json.Number passthrough.
type canonicalNumber json.Number

func (n canonicalNumber) MarshalJSON() ([]byte, error) {
	return []byte(string(n)), nil
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
