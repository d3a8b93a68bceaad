package recipe

import (
	"errors"
	"fmt"

	"github.com/mineichen/rigcore/internal/rig"
)

// Errors of the recipe package. Transaction errors are always recovered
// locally; ErrIrreversible marks the single boundary where in-memory and
// on-disk state may have diverged.
var (
	// ErrContainsActiveRecipe is returned when an import contains a
	// recipe with the id of the currently active recipe.
	ErrContainsActiveRecipe = errors.New("recipe: import contains the active recipe")

	// ErrInvalidFormat is returned for malformed archives and entries.
	ErrInvalidFormat = errors.New("recipe: invalid format")

	// ErrUncommittedChanges is returned when activation is attempted
	// while the active recipe carries uncommitted edits.
	ErrUncommittedChanges = errors.New("recipe: active recipe has uncommitted changes")

	// ErrDuplicateTag is returned when recipe metadata lists a tag twice.
	ErrDuplicateTag = errors.New("recipe: duplicate tag")

	// ErrInvalidPath is returned for file paths escaping the device
	// directory.
	ErrInvalidPath = errors.New("recipe: invalid relative path")

	// ErrIrreversible marks failures during filesystem reconciliation
	// after the in-memory commit. These cannot be rolled back
	// automatically and require operator attention.
	ErrIrreversible = errors.New("recipe: irreversible")
)

// Irreversible wraps err as an irreversible failure.
func Irreversible(err error) error {
	return fmt.Errorf("%w: %w", ErrIrreversible, err)
}

// InvalidFormat wraps a format violation with detail.
func InvalidFormat(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFormat, fmt.Sprintf(format, args...))
}

// ConflictError reports the recipes and variables an import could not
// merge. The importer stays open so the caller can retry with another
// strategy.
type ConflictError struct {
	RecipeIDs []rig.RecipeID
	Variables []rig.VariableConflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("recipe: import conflicts: %d recipes, %d variables", len(e.RecipeIDs), len(e.Variables))
}

// DeviceInMultipleRecipesError reports a device id owned by more than
// one recipe after a merge, which violates the aggregate invariant.
type DeviceInMultipleRecipesError struct {
	DeviceID  rig.DeviceID
	RecipeIDs []rig.RecipeID
}

func (e *DeviceInMultipleRecipesError) Error() string {
	return fmt.Sprintf("recipe: device %s exists in %d recipes", e.DeviceID, len(e.RecipeIDs))
}
