package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mineichen/rigcore/internal/rig"
)

// maxEntrySize caps a single archive entry.
const maxEntrySize = 100 << 20

// ImportOptions controls how staged recipes are applied to the store.
type ImportOptions struct {
	Strategy Strategy

	// DryRun runs the whole merge including validation and conflict
	// detection but stops before anything is changed.
	DryRun bool
}

// Importer holds a fully staged archive: parsed recipes, the imported
// variable table and the device files extracted to a staging directory
// next to the store. Apply can be retried with different options until
// it succeeds; Close removes the staging directory.
type Importer struct {
	service   *Service
	staging   string
	recipes   map[rig.RecipeID]rig.Recipe
	variables rig.Variables
	closed    bool
}

// NewImporter reads the whole archive from reader and stages it on
// disk. The archive must contain a variables.json entry; device files
// are staged keyed by their exported device id. Nothing is validated
// against the store yet.
func (s *Service) NewImporter(ctx context.Context, reader EntryReader) (*Importer, error) {
	staging, err := os.MkdirTemp(s.root, ".import-")
	if err != nil {
		return nil, err
	}
	imp := &Importer{
		service: s,
		staging: staging,
		recipes: make(map[rig.RecipeID]rig.Recipe),
	}
	if err := imp.stage(ctx, reader); err != nil {
		imp.Close()
		return nil, err
	}
	return imp, nil
}

func (imp *Importer) stage(ctx context.Context, reader EntryReader) error {
	seenVariables := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		switch {
		case entry.Name == variablesFileName:
			if err := decodeEntry(entry, &imp.variables); err != nil {
				return err
			}
			seenVariables = true
		case strings.HasSuffix(entry.Name, "/"+recipeEntryName):
			if err := imp.stageRecipe(entry); err != nil {
				return err
			}
		default:
			if err := imp.stageDeviceFile(entry); err != nil {
				return err
			}
		}
	}
	if !seenVariables {
		return InvalidFormat("archive misses %s", variablesFileName)
	}
	return nil
}

func decodeEntry(entry Entry, v any) error {
	data, err := readEntryCapped(entry)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return InvalidFormat("parsing %s: %v", entry.Name, err)
	}
	return nil
}

func readEntryCapped(entry Entry) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(entry.Reader, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, InvalidFormat("entry %s exceeds %d bytes", entry.Name, maxEntrySize)
	}
	return data, nil
}

func (imp *Importer) stageRecipe(entry Entry) error {
	idPart := strings.TrimSuffix(entry.Name, "/"+recipeEntryName)
	id, err := rig.ParseRecipeID(idPart)
	if err != nil {
		return InvalidFormat("entry %s: %v", entry.Name, err)
	}
	if _, exists := imp.recipes[id]; exists {
		return InvalidFormat("recipe %s appears twice", id)
	}
	var r rig.Recipe
	if err := decodeEntry(entry, &r); err != nil {
		return err
	}
	imp.recipes[id] = r
	return nil
}

func (imp *Importer) stageDeviceFile(entry Entry) error {
	parts := strings.SplitN(entry.Name, "/", 3)
	if len(parts) != 3 {
		return InvalidFormat("unexpected entry %s", entry.Name)
	}
	if _, err := rig.ParseRecipeID(parts[0]); err != nil {
		return InvalidFormat("entry %s: %v", entry.Name, err)
	}
	deviceID, err := rig.ParseDeviceID(parts[1])
	if err != nil {
		return InvalidFormat("entry %s: %v", entry.Name, err)
	}
	rel, err := RelativeFilePath(parts[2])
	if err != nil {
		return InvalidFormat("entry %s: %v", entry.Name, err)
	}
	target := filepath.Join(imp.staging, deviceID.String(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}
	written, err := io.Copy(f, io.LimitReader(entry.Reader, maxEntrySize+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if written > maxEntrySize {
		return InvalidFormat("entry %s exceeds %d bytes", entry.Name, maxEntrySize)
	}
	return nil
}

// RecipeIDs returns the ids of all staged recipes in sorted order.
func (imp *Importer) RecipeIDs() []rig.RecipeID {
	ids := make([]rig.RecipeID, 0, len(imp.recipes))
	for id := range imp.recipes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Apply merges the staged recipes into the store. The merge runs on a
// working copy; the live aggregate only changes once everything
// validated and no conflicts remain. A *ConflictError leaves the
// importer open so Apply can be retried with another strategy. Failures
// after the filesystem reconciliation started are wrapped as
// irreversible.
func (imp *Importer) Apply(ctx context.Context, opts ImportOptions) error {
	if imp.closed {
		return fmt.Errorf("recipe: importer is closed")
	}
	merger, err := opts.Strategy.merger()
	if err != nil {
		return err
	}

	s := imp.service
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.recipes.Clone()
	if _, exists := imp.recipes[working.ActiveID()]; exists {
		return fmt.Errorf("%w: %s", ErrContainsActiveRecipe, working.ActiveID())
	}

	workingVars := working.Variables()
	variableConflicts := workingVars.MergeWithoutConflicts(imp.variables)
	working.SetVariables(workingVars)

	m := newMergeContext(working, func(ctx context.Context, vars rig.Variables, r *rig.Recipe) error {
		return s.validateRecipe(ctx, vars, r)
	})
	for _, id := range imp.RecipeIDs() {
		if err := merger.handleRecipe(ctx, m, id, imp.recipes[id]); err != nil {
			return err
		}
	}
	if len(m.conflicts) > 0 || len(variableConflicts) > 0 {
		return &ConflictError{RecipeIDs: m.conflicts, Variables: variableConflicts}
	}
	for deviceID, owners := range working.DeviceToRecipe() {
		if len(owners) > 1 {
			return &DeviceInMultipleRecipesError{DeviceID: deviceID, RecipeIDs: owners}
		}
	}
	if opts.DryRun {
		return nil
	}

	// Irreversible zone: the filesystem starts changing here.
	for _, deviceID := range m.removals {
		if err := removeDirIfExists(s.deviceDir(deviceID)); err != nil {
			return Irreversible(fmt.Errorf("removing files of replaced device %s: %w", deviceID, err))
		}
	}
	for stagedID, finalID := range m.moves {
		src := filepath.Join(imp.staging, stagedID.String())
		if err := cloneDirectoryDeep(src, s.deviceDir(finalID)); err != nil {
			return Irreversible(fmt.Errorf("placing files of device %s: %w", finalID, err))
		}
	}
	s.recipes = working
	return s.commit(ctx, newTransactionRecord(OpImport, working.ActiveID(), rig.DeviceID{}))
}

// Close removes the staging directory. The importer cannot be used
// afterwards.
func (imp *Importer) Close() error {
	if imp.closed {
		return nil
	}
	imp.closed = true
	return os.RemoveAll(imp.staging)
}
