package rig

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResolveReplacesReference(t *testing.T) {
	vars := NewVariables(map[string]Variable{"threshold": NumberVariable(42)})
	params := MustParams(map[string]any{
		"text":        "value",
		"number":      7,
		"placeholder": map[string]any{"__var": "threshold"},
	})

	resolved, err := vars.Resolve(params)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var decoded struct {
		Text        string  `json:"text"`
		Number      int     `json:"number"`
		Placeholder float64 `json:"placeholder"`
	}
	if err := resolved.Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Placeholder != 42 {
		t.Errorf("placeholder = %v, want 42", decoded.Placeholder)
	}
	if decoded.Text != "value" || decoded.Number != 7 {
		t.Errorf("untouched values changed: %+v", decoded)
	}
}

func TestResolveNestedAndArrays(t *testing.T) {
	vars := NewVariables(map[string]Variable{"host": StringVariable("cam.local")})
	params := MustParams(map[string]any{
		"endpoints": []any{
			map[string]any{"addr": map[string]any{"__var": "host"}},
		},
	})

	resolved, err := vars.Resolve(params)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	raw, _ := json.Marshal(resolved)
	want := `{"endpoints":[{"addr":"cam.local"}]}`
	if string(raw) != want {
		t.Errorf("resolved = %s, want %s", raw, want)
	}
}

func TestResolveUnknownVariable(t *testing.T) {
	vars := NewVariables(nil)
	params := MustParams(map[string]any{"x": map[string]any{"__var": "missing"}})

	_, err := vars.Resolve(params)
	if !errors.Is(err, ErrUnknownVariable) {
		t.Fatalf("error = %v, want ErrUnknownVariable", err)
	}
}

func TestResolveRejectsMixedReferenceObject(t *testing.T) {
	vars := NewVariables(map[string]Variable{"a": NumberVariable(1)})
	params := MustParams(map[string]any{"x": map[string]any{"__var": "a", "other": 1}})

	_, err := vars.Resolve(params)
	if !errors.Is(err, ErrInvalidVariable) {
		t.Fatalf("error = %v, want ErrInvalidVariable", err)
	}
}

func TestVariableRejectsUnsupportedTypes(t *testing.T) {
	var v Variable
	if err := json.Unmarshal([]byte(`{"nested":true}`), &v); err == nil {
		t.Fatal("objects must be rejected as variable values")
	}
	if err := json.Unmarshal([]byte(`"ok"`), &v); err != nil {
		t.Fatalf("strings must be accepted: %v", err)
	}
	if err := json.Unmarshal([]byte(`3.5`), &v); err != nil {
		t.Fatalf("numbers must be accepted: %v", err)
	}
}

func TestMergeWithoutConflicts(t *testing.T) {
	existing := NewVariables(map[string]Variable{
		"same":    NumberVariable(1),
		"differs": NumberVariable(2),
	})
	imported := NewVariables(map[string]Variable{
		"same":    NumberVariable(1),
		"differs": NumberVariable(3),
		"new":     StringVariable("x"),
	})

	conflicts := existing.MergeWithoutConflicts(imported)
	if len(conflicts) != 1 || conflicts[0].Name != "differs" {
		t.Fatalf("conflicts = %+v, want exactly 'differs'", conflicts)
	}
	if v, ok := existing.Get("new"); !ok || !v.Equal(StringVariable("x")) {
		t.Error("non-conflicting variable was not merged")
	}
	if v, _ := existing.Get("differs"); !v.Equal(NumberVariable(2)) {
		t.Error("conflicting variable must keep the existing value")
	}
}

func TestVariableNames(t *testing.T) {
	params := MustParams(map[string]any{
		"a": map[string]any{"__var": "one"},
		"b": []any{map[string]any{"__var": "two"}},
		"c": map[string]any{"nested": map[string]any{"__var": "three"}},
	})
	names := params.VariableNames()
	if len(names) != 3 {
		t.Fatalf("VariableNames = %v, want three entries", names)
	}
}
