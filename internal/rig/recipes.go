package rig

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Recipes is the full configuration aggregate: every recipe, the active
// selection and the shared Variables table.
//
// Invariant: the active id always refers to an existing recipe. A store
// is never empty; NewRecipes seeds one empty active recipe.
//
// Recipes is not safe for concurrent use; the recipe.Service serializes
// all access to a live store.
type Recipes struct {
	activeID  RecipeID
	all       map[RecipeID]*Recipe
	variables Variables
}

// NewRecipes returns a store containing a single empty active recipe.
func NewRecipes() *Recipes {
	id := NewRecipeID()
	initial := NewRecipe()
	return &Recipes{
		activeID: id,
		all:      map[RecipeID]*Recipe{id: &initial},
	}
}

// NewRecipesWith returns a store whose single active recipe is r.
func NewRecipesWith(r Recipe) *Recipes {
	id := NewRecipeID()
	return &Recipes{
		activeID: id,
		all:      map[RecipeID]*Recipe{id: &r},
	}
}

// ActiveID returns the id of the active recipe.
func (rs *Recipes) ActiveID() RecipeID {
	return rs.activeID
}

// Active returns the active recipe. The invariant guarantees it exists.
func (rs *Recipes) Active() (RecipeID, *Recipe) {
	r, ok := rs.all[rs.activeID]
	if !ok {
		panic("rig: active recipe must always exist")
	}
	return rs.activeID, r
}

// SetActive switches the active selection to id.
func (rs *Recipes) SetActive(id RecipeID) error {
	if !rs.HasRecipe(id) {
		return UnknownRecipeError(id)
	}
	rs.activeID = id
	return nil
}

// HasRecipe reports whether id exists in the store.
func (rs *Recipes) HasRecipe(id RecipeID) bool {
	_, ok := rs.all[id]
	return ok
}

// Get returns the recipe for id.
func (rs *Recipes) Get(id RecipeID) (*Recipe, error) {
	r, ok := rs.all[id]
	if !ok {
		return nil, UnknownRecipeError(id)
	}
	return r, nil
}

// Count returns the number of recipes in the store.
func (rs *Recipes) Count() int {
	return len(rs.all)
}

// IDs returns every recipe id in deterministic (sorted) order.
func (rs *Recipes) IDs() []RecipeID {
	ids := make([]RecipeID, 0, len(rs.all))
	for id := range rs.all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Variables returns the shared substitution table.
func (rs *Recipes) Variables() Variables {
	return rs.variables
}

// SetVariables replaces the shared substitution table.
func (rs *Recipes) SetVariables(vars Variables) {
	rs.variables = vars
}

// Add inserts the recipe under a fresh id and returns it.
func (rs *Recipes) Add(r Recipe) RecipeID {
	id := NewRecipeID()
	rs.all[id] = &r
	return id
}

// TryAdd inserts the recipe under id. On collision the store is left
// unchanged and ErrRecipeExists is returned.
func (rs *Recipes) TryAdd(id RecipeID, r Recipe) error {
	if rs.HasRecipe(id) {
		return fmt.Errorf("%w: %s", ErrRecipeExists, id)
	}
	rs.all[id] = &r
	return nil
}

// AddUnique inserts a recipe whose id the caller guarantees to be free.
func (rs *Recipes) AddUnique(id RecipeID, r Recipe) {
	if rs.HasRecipe(id) {
		panic(fmt.Sprintf("rig: recipe %s inserted twice", id))
	}
	rs.all[id] = &r
}

// Remove deletes the recipe for id. Removing the active recipe is
// rejected; the active selection must be reassigned first.
func (rs *Recipes) Remove(id RecipeID) (Recipe, error) {
	if id == rs.activeID {
		return Recipe{}, fmt.Errorf("%w: %s", ErrActiveRecipe, id)
	}
	r, ok := rs.all[id]
	if !ok {
		return Recipe{}, UnknownRecipeError(id)
	}
	delete(rs.all, id)
	return *r, nil
}

// UpdateRecipeID re-keys a recipe. The active selection follows.
func (rs *Recipes) UpdateRecipeID(oldID, newID RecipeID) error {
	if rs.HasRecipe(newID) {
		return fmt.Errorf("%w: %s", ErrRecipeExists, newID)
	}
	r, ok := rs.all[oldID]
	if !ok {
		return UnknownRecipeError(oldID)
	}
	delete(rs.all, oldID)
	rs.all[newID] = r
	if rs.activeID == oldID {
		rs.activeID = newID
	}
	return nil
}

// BuildDuplicate duplicates r under a fresh RecipeID without inserting
// it, returning the new id, the translated recipe and the old-to-new
// DeviceID translation table.
func (rs *Recipes) BuildDuplicate(r *Recipe) (RecipeID, Recipe, map[DeviceID]DeviceID, error) {
	duplicate, mappings, err := r.Duplicate()
	if err != nil {
		return RecipeID{}, Recipe{}, nil, err
	}
	return NewRecipeID(), duplicate, mappings, nil
}

// DeviceToRecipe returns the mapping of every device id to the recipe
// containing it. Used to detect a device appearing in multiple recipes.
func (rs *Recipes) DeviceToRecipe() map[DeviceID][]RecipeID {
	out := make(map[DeviceID][]RecipeID)
	for id, r := range rs.all {
		for deviceID := range r.Devices {
			out[deviceID] = append(out[deviceID], id)
		}
	}
	return out
}

// FindDevice locates a device across all recipes.
func (rs *Recipes) FindDevice(deviceID DeviceID) (RecipeID, *DeviceConfig, error) {
	for id, r := range rs.all {
		if config, ok := r.Devices[deviceID]; ok {
			return id, &config, nil
		}
	}
	return RecipeID{}, nil, UnknownDeviceError(deviceID)
}

// HasActiveChanges reports whether the active recipe carries uncommitted
// parameter edits.
func (rs *Recipes) HasActiveChanges() bool {
	_, active := rs.Active()
	return active.HasUncommittedChanges()
}

// Clone returns a deep copy, used as the working copy during imports.
func (rs *Recipes) Clone() *Recipes {
	all := make(map[RecipeID]*Recipe, len(rs.all))
	for id, r := range rs.all {
		copied := r.Clone()
		all[id] = &copied
	}
	return &Recipes{
		activeID:  rs.activeID,
		all:       all,
		variables: rs.variables.Clone(),
	}
}

// recipesJSON is the wire form of Recipes.
type recipesJSON struct {
	ActiveID  RecipeID             `json:"active_id"`
	All       map[RecipeID]*Recipe `json:"all"`
	Variables Variables            `json:"variables"`
}

// MarshalJSON implements json.Marshaler.
func (rs *Recipes) MarshalJSON() ([]byte, error) {
	return json.Marshal(recipesJSON{
		ActiveID:  rs.activeID,
		All:       rs.all,
		Variables: rs.variables,
	})
}

// UnmarshalJSON implements json.Unmarshaler, rejecting stores whose
// active id does not exist.
func (rs *Recipes) UnmarshalJSON(data []byte) error {
	var raw recipesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, ok := raw.All[raw.ActiveID]; !ok {
		return fmt.Errorf("%w: active id %s", ErrUnknownRecipe, raw.ActiveID)
	}
	rs.activeID = raw.ActiveID
	rs.all = raw.All
	rs.variables = raw.Variables
	return nil
}
