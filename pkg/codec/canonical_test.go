// Copyright 2025 Certen Protocol

package codec

import (
	"testing"
)

func TestCanonicalJSONBytes_SortsKeys(t *testing.T) {
	v := map[string]any{"z": 1, "a": 2, "m": 3}
	got, err := CanonicalJSONBytes(v)
	if err != nil {
		t.Fatalf("CanonicalJSONBytes: %v", err)
	}
	want := `{"a":2,"m":3,"z":1}`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCanonicalJSONBytes_IntegerHasNoDecimalPoint(t *testing.T) {
	got, err := CanonicalJSONBytes(map[string]any{"n": 5.0})
	if err != nil {
		t.Fatalf("CanonicalJSONBytes: %v", err)
	}
	if string(got) != `{"n":5}` {
		t.Errorf("got %s, want {\"n\":5}", got)
	}
}

func TestCanonicalJSONBytes_RejectsNaN(t *testing.T) {
	if _, err := CanonicalJSONBytes(map[string]any{"n": math_NaN()}); err == nil {
		t.Error("expected error for NaN")
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	v := map[string]any{"b": []any{1, 2, 3}, "a": map[string]any{"x": "y"}}
	first, err := CanonicalJSONBytes(v)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	reCanon, err := CanonicalizeJSON(first)
	if err != nil {
		t.Fatalf("CanonicalizeJSON: %v", err)
	}
	if string(first) != string(reCanon) {
		t.Errorf("round trip mismatch: %s != %s", first, reCanon)
	}
}

func TestCanonicalJSONBytes_Deterministic(t *testing.T) {
	v := map[string]any{"one": 1, "two": map[string]any{"nested": true}, "three": []any{"a", "b"}}
	first, err := CanonicalJSONBytes(v)
	if err != nil {
		t.Fatalf("CanonicalJSONBytes: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := CanonicalJSONBytes(v)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if string(got) != string(first) {
			t.Fatalf("run %d differs: %s != %s", i, got, first)
		}
	}
}

func math_NaN() float64 {
	var zero float64
	return zero / zero
}
