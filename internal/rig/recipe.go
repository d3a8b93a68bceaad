package rig

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Recipe is a named set of device configurations that can be activated as
// a unit. Device ids are unique within a recipe; across the whole store a
// device id belongs to exactly one recipe at a time (enforced by the
// transaction service and the import pipeline).
type Recipe struct {
	Created time.Time                 `json:"created"`
	Tags    []Name                    `json:"tags"`
	Devices map[DeviceID]DeviceConfig `json:"devices"`
}

// NewRecipe returns an empty recipe stamped with the current time.
func NewRecipe() Recipe {
	return Recipe{
		Created: time.Now().UTC(),
		Devices: make(map[DeviceID]DeviceConfig),
	}
}

// AddDevice inserts config under a freshly minted DeviceID.
func (r *Recipe) AddDevice(config DeviceConfig) DeviceID {
	id := NewDeviceID()
	if r.Devices == nil {
		r.Devices = make(map[DeviceID]DeviceConfig)
	}
	r.Devices[id] = config
	return id
}

// AddDeviceWithID inserts config under the given id. The recipe is left
// unchanged when the id is already taken.
func (r *Recipe) AddDeviceWithID(id DeviceID, config DeviceConfig) error {
	if _, exists := r.Devices[id]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, id)
	}
	if r.Devices == nil {
		r.Devices = make(map[DeviceID]DeviceConfig)
	}
	r.Devices[id] = config
	return nil
}

// DeviceByID returns the config for id.
func (r *Recipe) DeviceByID(id DeviceID) (DeviceConfig, error) {
	config, ok := r.Devices[id]
	if !ok {
		return DeviceConfig{}, UnknownDeviceError(id)
	}
	return config, nil
}

// HasDevice reports whether id is part of the recipe.
func (r *Recipe) HasDevice(id DeviceID) bool {
	_, ok := r.Devices[id]
	return ok
}

// RemoveDevice deletes the device from the recipe.
func (r *Recipe) RemoveDevice(id DeviceID) error {
	if _, ok := r.Devices[id]; !ok {
		return UnknownDeviceError(id)
	}
	delete(r.Devices, id)
	return nil
}

// HasUncommittedChanges reports whether any device carries an
// uncommitted parameter edit.
func (r *Recipe) HasUncommittedChanges() bool {
	for _, config := range r.Devices {
		if config.HasUncommittedChanges() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the recipe.
func (r *Recipe) Clone() Recipe {
	copied := Recipe{
		Created: r.Created,
		Devices: make(map[DeviceID]DeviceConfig, len(r.Devices)),
	}
	if r.Tags != nil {
		copied.Tags = append([]Name(nil), r.Tags...)
	}
	for id, config := range r.Devices {
		copied.Devices[id] = config
	}
	return copied
}

// Duplicate returns a copy of the recipe with every DeviceID replaced by
// a fresh one, plus the old-to-new translation table. The replacement is
// textual over the serialized recipe, so device ids referenced inside
// parameters (links between devices) are remapped as well.
func (r *Recipe) Duplicate() (Recipe, map[DeviceID]DeviceID, error) {
	mappings := make(map[DeviceID]DeviceID, len(r.Devices))
	for id := range r.Devices {
		mappings[id] = NewDeviceID()
	}

	serialized, err := json.Marshal(r)
	if err != nil {
		return Recipe{}, nil, err
	}
	text := string(serialized)
	for oldID, newID := range mappings {
		text = strings.ReplaceAll(text, fmt.Sprintf("%q", oldID.String()), fmt.Sprintf("%q", newID.String()))
	}

	var duplicate Recipe
	if err := json.Unmarshal([]byte(text), &duplicate); err != nil {
		return Recipe{}, nil, err
	}
	return duplicate, mappings, nil
}
