package rig

import (
	"errors"
	"fmt"
)

// Domain errors for the rig package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, rig.ErrUnknownRecipe) {
//	    // handle unknown recipe
//	}
var (
	// ErrInvalidName is returned when a name fails validation.
	ErrInvalidName = errors.New("rig: invalid name")

	// ErrUnknownRecipe is returned when a recipe id does not exist.
	ErrUnknownRecipe = errors.New("rig: unknown recipe")

	// ErrUnknownDevice is returned when a device id does not exist.
	ErrUnknownDevice = errors.New("rig: unknown device")

	// ErrRecipeExists is returned when inserting a recipe whose id is taken.
	ErrRecipeExists = errors.New("rig: recipe already exists")

	// ErrDeviceExists is returned when inserting a device whose id is taken.
	ErrDeviceExists = errors.New("rig: device already exists")

	// ErrActiveRecipe is returned when removing the active recipe.
	// The active selection must be reassigned first.
	ErrActiveRecipe = errors.New("rig: recipe is active")

	// ErrUnknownVariable is returned when parameter resolution references
	// a variable that is not in the table.
	ErrUnknownVariable = errors.New("rig: unknown variable")

	// ErrInvalidVariable is returned for malformed variable references or
	// unsupported variable value types.
	ErrInvalidVariable = errors.New("rig: invalid variable")

	// ErrNoCommittedParams is returned when restoring committed parameters
	// of a device that has no uncommitted edit.
	ErrNoCommittedParams = errors.New("rig: no committed parameters found")
)

// UnknownRecipeError wraps ErrUnknownRecipe with the offending id.
func UnknownRecipeError(id RecipeID) error {
	return fmt.Errorf("%w: %s", ErrUnknownRecipe, id)
}

// UnknownDeviceError wraps ErrUnknownDevice with the offending id.
func UnknownDeviceError(id DeviceID) error {
	return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
}
