package rig

import (
	"fmt"
	"strconv"
	"strings"
)

// Name validation constants.
const (
	maxNameLength = 64
	nameCharset   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789._-"
)

// Name is a validated, human-readable identifier. It is distinct from the
// opaque DeviceID/RecipeID values and is used for lookup by humans and UIs.
//
// The zero value is invalid; construct names via NewName.
type Name struct {
	value string
}

// NewName validates and returns a Name.
// Valid names are non-empty, at most 64 characters and restricted to
// letters, digits, '.', '_' and '-'.
func NewName(value string) (Name, error) {
	if value == "" {
		return Name{}, fmt.Errorf("%w: empty name is not allowed", ErrInvalidName)
	}
	if len(value) > maxNameLength {
		return Name{}, fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidName, value, maxNameLength)
	}
	for _, r := range value {
		if !strings.ContainsRune(nameCharset, r) {
			return Name{}, fmt.Errorf("%w: %q contains invalid character %q", ErrInvalidName, value, r)
		}
	}
	return Name{value: value}, nil
}

// MustName is like NewName but panics on invalid input.
// Intended for constants and tests.
func MustName(value string) Name {
	n, err := NewName(value)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string {
	return n.value
}

// IsZero reports whether the name was never initialised.
func (n Name) IsZero() bool {
	return n.value == ""
}

// SuggestUnique returns successive candidates derived from n ("base_2",
// "base_3", ...) until taken reports false. A name already carrying a
// numeric suffix continues counting from that suffix.
func (n Name) SuggestUnique(taken func(Name) bool) Name {
	base := n.value
	counter := 1
	if idx := strings.LastIndexByte(base, '_'); idx >= 0 {
		if i, err := strconv.Atoi(base[idx+1:]); err == nil {
			base, counter = base[:idx], i
		}
	}
	for {
		counter++
		candidate := Name{value: fmt.Sprintf("%s_%d", base, counter)}
		if !taken(candidate) {
			return candidate
		}
	}
}

// MarshalText implements encoding.TextMarshaler.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, validating the input.
func (n *Name) UnmarshalText(text []byte) error {
	parsed, err := NewName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
