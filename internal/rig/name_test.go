package rig

import (
	"errors"
	"testing"
)

func TestNewName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "cam1", false},
		{"with separators", "front_door.cam-2", false},
		{"empty", "", true},
		{"space", "front door", true},
		{"slash", "a/b", true},
		{"too long", string(make([]byte, 65)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("error should wrap ErrInvalidName, got %v", err)
			}
		})
	}
}

func TestSuggestUnique(t *testing.T) {
	taken := map[string]bool{"cam": true, "cam_2": true, "cam_3": true}
	got := MustName("cam").SuggestUnique(func(n Name) bool { return taken[n.String()] })
	if got.String() != "cam_4" {
		t.Errorf("SuggestUnique = %q, want cam_4", got)
	}

	got = MustName("cam_7").SuggestUnique(func(Name) bool { return false })
	if got.String() != "cam_8" {
		t.Errorf("SuggestUnique continues numeric suffix, got %q, want cam_8", got)
	}
}

func TestNameUnmarshalRejectsInvalid(t *testing.T) {
	var n Name
	if err := n.UnmarshalText([]byte("not valid!")); err == nil {
		t.Fatal("expected validation error")
	}
}
