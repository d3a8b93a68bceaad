package recipe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/mineichen/rigcore/internal/rig"
)

// variablesFileName is the archive entry carrying the variable table.
const variablesFileName = "variables.json"

// recipeEntryName is the per-recipe descriptor inside an archive.
const recipeEntryName = "recipe.json"

// Export streams one recipe into w: the recipe descriptor under
// "<recipeId>/recipe.json", every device file under
// "<recipeId>/<deviceId>/<relative path>" and the subset of the
// variable table the recipe references under "variables.json".
// Referencing an unknown variable fails the export.
func (s *Service) Export(ctx context.Context, id rig.RecipeID, w EntryWriter) error {
	s.mu.RLock()
	r, err := s.recipes.Get(id)
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	snapshot := r.Clone()
	vars := s.recipes.Variables()
	s.mu.RUnlock()

	used, err := usedVariables(&snapshot, vars)
	if err != nil {
		return err
	}

	descriptor, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return err
	}
	if err := w.Insert(path.Join(id.String(), recipeEntryName), bytes.NewReader(descriptor)); err != nil {
		return err
	}

	for deviceID := range snapshot.Devices {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.exportDeviceFiles(id, deviceID, w); err != nil {
			return err
		}
	}

	varsData, err := json.MarshalIndent(used, "", "  ")
	if err != nil {
		return err
	}
	if err := w.Insert(variablesFileName, bytes.NewReader(varsData)); err != nil {
		return err
	}
	return w.Close()
}

func (s *Service) exportDeviceFiles(recipeID rig.RecipeID, deviceID rig.DeviceID, w EntryWriter) error {
	files := s.files.Build(deviceID)
	relPaths, err := files.List()
	if err != nil {
		return err
	}
	for _, rel := range relPaths {
		f, err := os.Open(filepath.Join(files.Root(), filepath.FromSlash(rel)))
		if err != nil {
			return err
		}
		name := path.Join(recipeID.String(), deviceID.String(), rel)
		insertErr := w.Insert(name, f)
		f.Close()
		if insertErr != nil {
			return insertErr
		}
	}
	return nil
}

// usedVariables returns the subset of vars referenced by any device
// parameters of r. A reference without a table entry is an error.
func usedVariables(r *rig.Recipe, vars rig.Variables) (map[string]rig.Variable, error) {
	used := make(map[string]rig.Variable)
	for id, config := range r.Devices {
		for _, name := range config.Params.VariableNames() {
			value, ok := vars.Get(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s (referenced by device %s)", rig.ErrUnknownVariable, name, id)
			}
			used[name] = value
		}
	}
	return used, nil
}
