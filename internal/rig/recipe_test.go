package rig

import (
	"encoding/json"
	"errors"
	"testing"
)

func mockConfig(t *testing.T, params any) DeviceConfig {
	t.Helper()
	config, err := NewDeviceConfig("testdevice", MustName("testdevicename"), params)
	if err != nil {
		t.Fatalf("NewDeviceConfig: %v", err)
	}
	return config
}

func TestNewRecipeHasNoDevices(t *testing.T) {
	if n := len(NewRecipe().Devices); n != 0 {
		t.Errorf("new recipe has %d devices, want 0", n)
	}
}

func TestDeviceByID(t *testing.T) {
	recipe := NewRecipe()
	id := recipe.AddDevice(mockConfig(t, map[string]any{}))

	if _, err := recipe.DeviceByID(id); err != nil {
		t.Fatalf("DeviceByID: %v", err)
	}
	if _, err := recipe.DeviceByID(NewDeviceID()); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("error = %v, want ErrUnknownDevice", err)
	}
}

func TestAddDeviceWithIDRejectsDuplicate(t *testing.T) {
	recipe := NewRecipe()
	id := recipe.AddDevice(mockConfig(t, 1))

	err := recipe.AddDeviceWithID(id, mockConfig(t, 2))
	if !errors.Is(err, ErrDeviceExists) {
		t.Fatalf("error = %v, want ErrDeviceExists", err)
	}
	config, _ := recipe.DeviceByID(id)
	if !config.Params.Equal(MustParams(1)) {
		t.Error("existing device was modified by rejected insert")
	}
}

func TestDuplicateRemapsDeviceIDs(t *testing.T) {
	recipe := NewRecipe()
	first := recipe.AddDevice(mockConfig(t, map[string]any{}))
	// second device links to the first through its params
	second := recipe.AddDevice(mockConfig(t, map[string]any{"source": first.String()}))

	duplicate, mappings, err := recipe.Duplicate()
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("mappings = %v, want two entries", mappings)
	}
	for oldID, newID := range mappings {
		if oldID == newID {
			t.Error("duplicate reused an old DeviceID")
		}
		if duplicate.HasDevice(oldID) {
			t.Error("duplicate still contains an old DeviceID")
		}
		if !duplicate.HasDevice(newID) {
			t.Error("duplicate is missing a translated DeviceID")
		}
	}

	// the inter-device link must point at the translated id
	linked, err := duplicate.DeviceByID(mappings[second])
	if err != nil {
		t.Fatalf("DeviceByID: %v", err)
	}
	raw, _ := json.Marshal(linked.Params)
	var params struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if params.Source != mappings[first].String() {
		t.Errorf("link = %s, want translated id %s", params.Source, mappings[first])
	}
}

func TestUncommittedParams(t *testing.T) {
	config := mockConfig(t, 1)

	config.UpdateParamsUncommitted(MustParams(42))
	if !config.Params.Equal(MustParams(42)) {
		t.Fatal("uncommitted update not applied")
	}
	config.UpdateParamsUncommitted(MustParams(10))
	if !config.Params.Equal(MustParams(10)) {
		t.Fatal("second uncommitted update not applied")
	}

	restored, err := config.RestoreCommitted()
	if err != nil {
		t.Fatalf("RestoreCommitted: %v", err)
	}
	if !restored.Equal(MustParams(1)) {
		t.Error("restore must return the oldest committed params")
	}
	if _, err := config.RestoreCommitted(); !errors.Is(err, ErrNoCommittedParams) {
		t.Errorf("second restore error = %v, want ErrNoCommittedParams", err)
	}
}

func TestDeviceConfigRoundTrip(t *testing.T) {
	config := mockConfig(t, map[string]any{"fps": 30})
	config.UpdateParamsUncommitted(MustParams(map[string]any{"fps": 60}))

	raw, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded DeviceConfig
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.HasUncommittedChanges() {
		t.Error("committed params lost in round trip")
	}
	if decoded.DeviceType != "testdevice" {
		t.Errorf("device type = %q", decoded.DeviceType)
	}
}
