package rig

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// varKeyword marks a variable reference inside device parameters:
// {"__var": "threshold"} resolves to the value of the variable "threshold".
const varKeyword = "__var"

// ParamsWithVars holds raw device parameters that may still contain
// variable references. It is resolved against a Variables table before
// any validation or use by a device.
type ParamsWithVars struct {
	raw json.RawMessage
}

// NewParams serializes v into ParamsWithVars.
func NewParams(v any) (ParamsWithVars, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return ParamsWithVars{}, err
	}
	return ParamsWithVars{raw: raw}, nil
}

// MustParams is like NewParams but panics on error. Intended for tests.
func MustParams(v any) ParamsWithVars {
	p, err := NewParams(v)
	if err != nil {
		panic(err)
	}
	return p
}

// EmptyParams returns parameters holding an empty JSON object.
func EmptyParams() ParamsWithVars {
	return ParamsWithVars{raw: json.RawMessage(`{}`)}
}

// IsZero reports whether the parameters were never initialised.
func (p ParamsWithVars) IsZero() bool {
	return p.raw == nil
}

// Equal compares the raw JSON byte-for-byte.
func (p ParamsWithVars) Equal(other ParamsWithVars) bool {
	return bytes.Equal(p.raw, other.raw)
}

// Unmarshal deserializes the raw parameters into v without resolving
// variable references.
func (p ParamsWithVars) Unmarshal(v any) error {
	return json.Unmarshal(p.raw, v)
}

// VariableNames returns the names of all variables referenced anywhere
// in the parameter document.
func (p ParamsWithVars) VariableNames() []string {
	var doc any
	if err := json.Unmarshal(p.raw, &doc); err != nil {
		return nil
	}
	var names []string
	collectVariableNames(doc, &names)
	return names
}

func collectVariableNames(doc any, names *[]string) {
	switch v := doc.(type) {
	case map[string]any:
		if ref, ok := v[varKeyword]; ok && len(v) == 1 {
			if name, ok := ref.(string); ok {
				*names = append(*names, name)
			}
			return
		}
		for _, child := range v {
			collectVariableNames(child, names)
		}
	case []any:
		for _, child := range v {
			collectVariableNames(child, names)
		}
	}
}

// MarshalJSON implements json.Marshaler.
func (p ParamsWithVars) MarshalJSON() ([]byte, error) {
	if p.raw == nil {
		return []byte(`{}`), nil
	}
	return p.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ParamsWithVars) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("rig: invalid params json")
	}
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// ResolvedParams are parameters with every variable reference substituted.
// They are the only form a device ever validates or applies.
type ResolvedParams struct {
	raw json.RawMessage
}

// Decode deserializes the resolved parameters into v.
func (p ResolvedParams) Decode(v any) error {
	return json.Unmarshal(p.raw, v)
}

// MarshalJSON implements json.Marshaler.
func (p ResolvedParams) MarshalJSON() ([]byte, error) {
	if p.raw == nil {
		return []byte(`{}`), nil
	}
	return p.raw, nil
}
