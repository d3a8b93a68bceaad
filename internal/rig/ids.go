package rig

import "github.com/google/uuid"

// DeviceID uniquely identifies a device configuration across all recipes.
// It is generated at creation and immutable for the device's lifetime.
type DeviceID struct {
	uuid.UUID
}

// NewDeviceID returns a fresh random DeviceID.
func NewDeviceID() DeviceID {
	return DeviceID{uuid.New()}
}

// ParseDeviceID parses the canonical text form produced by String.
func ParseDeviceID(s string) (DeviceID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return DeviceID{}, err
	}
	return DeviceID{id}, nil
}

// IsZero reports whether the id is the zero value.
func (id DeviceID) IsZero() bool {
	return id.UUID == uuid.Nil
}

// RecipeID uniquely identifies a recipe within a store.
type RecipeID struct {
	uuid.UUID
}

// NewRecipeID returns a fresh random RecipeID.
func NewRecipeID() RecipeID {
	return RecipeID{uuid.New()}
}

// ParseRecipeID parses the canonical text form produced by String.
func ParseRecipeID(s string) (RecipeID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RecipeID{}, err
	}
	return RecipeID{id}, nil
}

// IsZero reports whether the id is the zero value.
func (id RecipeID) IsZero() bool {
	return id.UUID == uuid.Nil
}
