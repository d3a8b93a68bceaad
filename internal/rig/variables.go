package rig

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Variable is a literal substitution value. Only strings and numbers are
// supported; anything else is rejected during deserialization.
type Variable struct {
	value any
}

// StringVariable returns a Variable holding a string.
func StringVariable(s string) Variable {
	return Variable{value: s}
}

// NumberVariable returns a Variable holding a number.
func NumberVariable(f float64) Variable {
	return Variable{value: f}
}

// Equal reports whether two variables hold the same value.
func (v Variable) Equal(other Variable) bool {
	return v.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (v Variable) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.value)
}

// UnmarshalJSON implements json.Unmarshaler, restricting values to
// strings and numbers.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.(type) {
	case string, float64:
		v.value = raw
		return nil
	default:
		return fmt.Errorf("%w: just numbers and strings are supported", ErrInvalidVariable)
	}
}

// VariableConflict records a variable whose imported value differs from
// the existing one. Conflicts must be resolved by the operator before an
// import can commit.
type VariableConflict struct {
	Name     string   `json:"name"`
	Existing Variable `json:"existing"`
	Imported Variable `json:"imported"`
}

// VariablesPatch is a set of variable overrides applied as one unit.
type VariablesPatch map[string]Variable

// Variables maps variable names to literal values. Resolution of
// parameters against the table is pure and side-effect-free.
type Variables struct {
	mappings map[string]Variable
}

// NewVariables returns a table holding the given mappings.
func NewVariables(mappings map[string]Variable) Variables {
	copied := make(map[string]Variable, len(mappings))
	for k, v := range mappings {
		copied[k] = v
	}
	return Variables{mappings: copied}
}

// Get returns the value for name.
func (vs Variables) Get(name string) (Variable, bool) {
	v, ok := vs.mappings[name]
	return v, ok
}

// Len returns the number of variables in the table.
func (vs Variables) Len() int {
	return len(vs.mappings)
}

// Names returns all variable names in sorted order.
func (vs Variables) Names() []string {
	names := make([]string, 0, len(vs.mappings))
	for k := range vs.mappings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the table.
func (vs Variables) Clone() Variables {
	return NewVariables(vs.mappings)
}

// Patch returns a new table with the overrides applied on top of vs.
func (vs Variables) Patch(patch VariablesPatch) Variables {
	merged := make(map[string]Variable, len(vs.mappings)+len(patch))
	for k, v := range vs.mappings {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return Variables{mappings: merged}
}

// MergeWithoutConflicts copies every variable from other that is absent
// in vs and returns the conflicts for names present in both tables with
// differing values. Identical values merge silently.
func (vs *Variables) MergeWithoutConflicts(other Variables) []VariableConflict {
	if vs.mappings == nil {
		vs.mappings = make(map[string]Variable, len(other.mappings))
	}
	var conflicts []VariableConflict
	for _, name := range other.Names() {
		imported := other.mappings[name]
		existing, ok := vs.mappings[name]
		if !ok {
			vs.mappings[name] = imported
			continue
		}
		if !existing.Equal(imported) {
			conflicts = append(conflicts, VariableConflict{
				Name:     name,
				Existing: existing,
				Imported: imported,
			})
		}
	}
	return conflicts
}

// Resolve substitutes every variable reference in params. Unresolved
// references and malformed reference objects are hard errors.
func (vs Variables) Resolve(params ParamsWithVars) (ResolvedParams, error) {
	var doc any
	if err := json.Unmarshal(params.raw, &doc); err != nil {
		return ResolvedParams{}, fmt.Errorf("rig: malformed params: %w", err)
	}
	resolved, err := vs.resolveValue(doc)
	if err != nil {
		return ResolvedParams{}, err
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return ResolvedParams{}, err
	}
	return ResolvedParams{raw: raw}, nil
}

func (vs Variables) resolveValue(doc any) (any, error) {
	switch v := doc.(type) {
	case map[string]any:
		ref, isRef := v[varKeyword]
		if isRef {
			if len(v) != 1 {
				return nil, fmt.Errorf("%w: objects with %s must not contain anything else", ErrInvalidVariable, varKeyword)
			}
			name, ok := ref.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s has to contain a string", ErrInvalidVariable, varKeyword)
			}
			value, ok := vs.mappings[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
			}
			return value.value, nil
		}
		out := make(map[string]any, len(v))
		for k, child := range v {
			resolved, err := vs.resolveValue(child)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			resolved, err := vs.resolveValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// MarshalJSON implements json.Marshaler.
func (vs Variables) MarshalJSON() ([]byte, error) {
	if vs.mappings == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(vs.mappings)
}

// UnmarshalJSON implements json.Unmarshaler.
func (vs *Variables) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &vs.mappings)
}
