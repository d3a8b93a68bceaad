package recipe

import (
	"context"
	"fmt"

	"github.com/mineichen/rigcore/internal/rig"
)

// Strategy selects how imported recipes merge with existing ones whose
// ids collide.
type Strategy int

const (
	// StrategyUnspecified inserts imported recipes as-is and records a
	// conflict for every id that already exists.
	StrategyUnspecified Strategy = iota

	// StrategyDuplicate re-keys colliding recipes and their devices
	// under fresh ids, remapping device links inside parameters.
	StrategyDuplicate

	// StrategyReplace removes the existing recipe (and its device
	// files) and inserts the imported one in its place.
	StrategyReplace
)

func (s Strategy) String() string {
	switch s {
	case StrategyUnspecified:
		return "unspecified"
	case StrategyDuplicate:
		return "duplicate"
	case StrategyReplace:
		return "replace"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func (s Strategy) merger() (recipeMerger, error) {
	switch s {
	case StrategyUnspecified:
		return unspecifiedMerger{}, nil
	case StrategyDuplicate:
		return duplicateMerger{}, nil
	case StrategyReplace:
		return replaceMerger{}, nil
	default:
		return nil, fmt.Errorf("recipe: unknown merge strategy %d", int(s))
	}
}

// mergeContext accumulates the outcome of merging imported recipes into
// a working copy of the aggregate: id conflicts, the plan for moving
// staged device files into place and the device directories a replace
// made obsolete. Nothing here touches the live store.
type mergeContext struct {
	recipes  *rig.Recipes
	validate func(ctx context.Context, vars rig.Variables, r *rig.Recipe) error

	conflicts []rig.RecipeID

	// moves maps each staged device id (as exported) to its final
	// device id after the merge.
	moves map[rig.DeviceID]rig.DeviceID

	// removals lists device directories of replaced recipes.
	removals []rig.DeviceID
}

func newMergeContext(working *rig.Recipes, validate func(context.Context, rig.Variables, *rig.Recipe) error) *mergeContext {
	return &mergeContext{
		recipes:  working,
		validate: validate,
		moves:    make(map[rig.DeviceID]rig.DeviceID),
	}
}

func (m *mergeContext) insertNew(ctx context.Context, id rig.RecipeID, r rig.Recipe) error {
	if err := m.validate(ctx, m.recipes.Variables(), &r); err != nil {
		return err
	}
	if err := m.recipes.TryAdd(id, r); err != nil {
		return err
	}
	for deviceID := range r.Devices {
		m.moves[deviceID] = deviceID
	}
	return nil
}

// recipeMerger handles one imported recipe against the working copy.
type recipeMerger interface {
	handleRecipe(ctx context.Context, m *mergeContext, id rig.RecipeID, r rig.Recipe) error
}

type unspecifiedMerger struct{}

func (unspecifiedMerger) handleRecipe(ctx context.Context, m *mergeContext, id rig.RecipeID, r rig.Recipe) error {
	if m.recipes.HasRecipe(id) {
		m.conflicts = append(m.conflicts, id)
		return nil
	}
	return m.insertNew(ctx, id, r)
}

type duplicateMerger struct{}

func (duplicateMerger) handleRecipe(ctx context.Context, m *mergeContext, id rig.RecipeID, r rig.Recipe) error {
	if !m.recipes.HasRecipe(id) {
		return m.insertNew(ctx, id, r)
	}
	newID, duplicate, mappings, err := m.recipes.BuildDuplicate(&r)
	if err != nil {
		return err
	}
	if err := m.validate(ctx, m.recipes.Variables(), &duplicate); err != nil {
		return err
	}
	m.recipes.AddUnique(newID, duplicate)
	for oldDevice, newDevice := range mappings {
		m.moves[oldDevice] = newDevice
	}
	return nil
}

type replaceMerger struct{}

func (replaceMerger) handleRecipe(ctx context.Context, m *mergeContext, id rig.RecipeID, r rig.Recipe) error {
	if m.recipes.HasRecipe(id) {
		removed, err := m.recipes.Remove(id)
		if err != nil {
			return err
		}
		for deviceID := range removed.Devices {
			m.removals = append(m.removals, deviceID)
		}
	}
	return m.insertNew(ctx, id, r)
}
