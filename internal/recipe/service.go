package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mineichen/rigcore/internal/rig"
)

// recipesFileName is the store's persisted aggregate below the root.
const recipesFileName = "recipes.json"

// backupDirName holds pre-activation snapshots of the aggregate.
const backupDirName = "backup"

// Transaction operations recorded in the journal.
const (
	OpAddRecipe        = "add_recipe"
	OpDeleteRecipe     = "delete_recipe"
	OpDuplicateRecipe  = "duplicate_recipe"
	OpActivateRecipe   = "activate_recipe"
	OpUpdateRecipeID   = "update_recipe_id"
	OpUpdateMetadata   = "update_recipe_metadata"
	OpAddDevice        = "add_device"
	OpDeleteDevice     = "delete_device"
	OpUpdateParams     = "update_device_params"
	OpRestoreParams    = "restore_device_params"
	OpUpdateDeviceName = "update_device_name"
	OpCommitActive     = "commit_active"
	OpImport           = "import"
)

// TransactionRecord describes one committed mutation of the store.
type TransactionRecord struct {
	Key       uuid.UUID    `json:"key"`
	Operation string       `json:"operation"`
	RecipeID  rig.RecipeID `json:"recipe_id"`
	DeviceID  rig.DeviceID `json:"device_id,omitempty"`
	Occurred  time.Time    `json:"occurred"`
}

func newTransactionRecord(op string, recipeID rig.RecipeID, deviceID rig.DeviceID) TransactionRecord {
	return TransactionRecord{
		Key:       uuid.New(),
		Operation: op,
		RecipeID:  recipeID,
		DeviceID:  deviceID,
		Occurred:  time.Now().UTC(),
	}
}

// Journal persists committed transaction records.
type Journal interface {
	Record(ctx context.Context, rec TransactionRecord) error
}

// EventSink broadcasts committed transactions to external consumers.
type EventSink interface {
	TransactionCommitted(ctx context.Context, rec TransactionRecord)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Root is the directory holding recipes.json, the per-device file
	// trees and the backup snapshots.
	Root string

	// Actions validates, applies and spawns device configurations.
	Actions DeviceActions

	// Journal receives every committed transaction. Optional.
	Journal Journal

	// Events receives every committed transaction. Optional.
	Events EventSink

	// InitListeners seed devices into newly created default recipes.
	InitListeners []InitRecipeListener

	// Logger used by the service. Defaults to a no-op logger.
	Logger Logger
}

// Service is the transactional owner of the recipe aggregate. Every
// mutation validates fully before any state changes; on failure the
// store is left untouched. Mutations are serialized by an internal
// mutex, reads work on snapshots.
type Service struct {
	mu        sync.RWMutex
	root      string
	recipes   *rig.Recipes
	actions   DeviceActions
	journal   Journal
	events    EventSink
	listeners []InitRecipeListener
	logger    Logger
	files     *FileServiceBuilder

	subMu   sync.Mutex
	subs    map[int]chan TransactionRecord
	nextSub int
}

// NewService loads the aggregate from opts.Root, seeding a default
// store when none is persisted yet.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Actions == nil {
		return nil, fmt.Errorf("recipe: device actions are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Service{
		root:      opts.Root,
		actions:   opts.Actions,
		journal:   opts.Journal,
		events:    opts.Events,
		listeners: opts.InitListeners,
		logger:    logger,
		files:     NewFileServiceBuilder(opts.Root),
		subs:      make(map[int]chan TransactionRecord),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) load() error {
	if err := os.MkdirAll(s.root, dirPermissions); err != nil {
		return err
	}
	data, err := os.ReadFile(s.recipesPath())
	if os.IsNotExist(err) {
		s.recipes = rig.NewRecipes()
		_, active := s.recipes.Active()
		for _, listener := range s.listeners {
			listener(active)
		}
		s.logger.Info("seeded default recipe store", "path", s.recipesPath())
		return s.save()
	}
	if err != nil {
		return err
	}
	var recipes rig.Recipes
	if err := json.Unmarshal(data, &recipes); err != nil {
		return fmt.Errorf("recipe: loading %s: %w", s.recipesPath(), err)
	}
	s.recipes = &recipes
	s.logger.Info("loaded recipe store",
		"path", s.recipesPath(),
		"recipes", recipes.Count(),
		"active", recipes.ActiveID().String())
	return nil
}

func (s *Service) recipesPath() string {
	return filepath.Join(s.root, recipesFileName)
}

func (s *Service) deviceDir(id rig.DeviceID) string {
	return filepath.Join(s.root, id.String())
}

// Files returns the per-device file store builder rooted at the
// service's directory.
func (s *Service) Files() *FileServiceBuilder {
	return s.files
}

// Root returns the service's storage directory.
func (s *Service) Root() string {
	return s.root
}

// save writes the aggregate to disk via a temp file and rename.
func (s *Service) save() error {
	data, err := json.MarshalIndent(s.recipes, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.recipesPath() + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return err
	}
	return os.Rename(tmp, s.recipesPath())
}

// commit persists the mutated aggregate and fans the record out to the
// journal, the event sink and subscribers. A persist failure after the
// in-memory mutation is irreversible.
func (s *Service) commit(ctx context.Context, rec TransactionRecord) error {
	if err := s.save(); err != nil {
		return Irreversible(err)
	}
	if s.journal != nil {
		if err := s.journal.Record(ctx, rec); err != nil {
			s.logger.Error("journal write failed", "operation", rec.Operation, "error", err)
		}
	}
	if s.events != nil {
		s.events.TransactionCommitted(ctx, rec)
	}
	s.notify(rec)
	s.logger.Debug("transaction committed",
		"operation", rec.Operation,
		"recipe_id", rec.RecipeID.String())
	return nil
}

// Subscribe returns a channel receiving every committed transaction and
// a cancel function releasing the subscription. Slow subscribers drop
// records rather than block commits.
func (s *Service) Subscribe() (<-chan TransactionRecord, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan TransactionRecord, 16)
	s.subs[id] = ch
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
}

func (s *Service) notify(rec TransactionRecord) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
			s.logger.Warn("dropping transaction notification, subscriber is slow",
				"operation", rec.Operation)
		}
	}
}

// State returns an independent snapshot of the whole aggregate.
func (s *Service) State() *rig.Recipes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipes.Clone()
}

// ActiveRecipe returns the active id and a copy of the active recipe.
func (s *Service) ActiveRecipe() (rig.RecipeID, rig.Recipe) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, r := s.recipes.Active()
	return id, r.Clone()
}

// validateDevice resolves the device's parameters first so variable
// errors surface before type-specific validation, then lets the device
// registry judge the configuration.
func (s *Service) validateDevice(ctx context.Context, vars rig.Variables, id rig.DeviceID, config rig.DeviceConfig) error {
	dctx := DeviceContext{ID: id, Variables: vars, Params: config.Params}
	if _, err := dctx.Resolve(); err != nil {
		return fmt.Errorf("device %s (%s): %w", config.DeviceName, id, err)
	}
	if err := s.actions.Validate(ctx, config.DeviceType, dctx); err != nil {
		return fmt.Errorf("device %s (%s): %w", config.DeviceName, id, err)
	}
	return nil
}

// validateRecipe validates every device of r. One failure rejects the
// whole recipe.
func (s *Service) validateRecipe(ctx context.Context, vars rig.Variables, r *rig.Recipe) error {
	for id, config := range r.Devices {
		if err := s.validateDevice(ctx, vars, id, config); err != nil {
			return err
		}
	}
	return nil
}

// AddNewDefaultRecipe creates, validates and inserts a fresh recipe
// seeded by the configured init listeners.
func (s *Service) AddNewDefaultRecipe(ctx context.Context) (rig.RecipeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := rig.NewRecipe()
	for _, listener := range s.listeners {
		listener(&r)
	}
	if err := s.validateRecipe(ctx, s.recipes.Variables(), &r); err != nil {
		return rig.RecipeID{}, err
	}
	id := s.recipes.Add(r)
	return id, s.commit(ctx, newTransactionRecord(OpAddRecipe, id, rig.DeviceID{}))
}

// AddRecipeWithID validates and inserts r under id. On any failure the
// store is unchanged and the candidate recipe is handed back to the
// caller together with the error.
func (s *Service) AddRecipeWithID(ctx context.Context, id rig.RecipeID, r rig.Recipe) (rig.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tryAddNewWithID(ctx, id, &r); err != nil {
		return r, err
	}
	return rig.Recipe{}, s.commit(ctx, newTransactionRecord(OpAddRecipe, id, rig.DeviceID{}))
}

// tryAddNewWithID is the validate-then-insert protocol shared by
// AddRecipeWithID and the import pipeline: validate every device of the
// candidate, then insert it only if the id is free.
func (s *Service) tryAddNewWithID(ctx context.Context, id rig.RecipeID, r *rig.Recipe) error {
	if err := s.validateRecipe(ctx, s.recipes.Variables(), r); err != nil {
		return err
	}
	return s.recipes.TryAdd(id, *r)
}

// DuplicateRecipe copies the recipe under a fresh id with fresh device
// ids, cloning all device file trees. Device links inside parameters
// are remapped to the duplicated devices.
func (s *Service) DuplicateRecipe(ctx context.Context, id rig.RecipeID) (rig.RecipeID, rig.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, err := s.recipes.Get(id)
	if err != nil {
		return rig.RecipeID{}, rig.Recipe{}, err
	}
	newID, duplicate, mappings, err := s.recipes.BuildDuplicate(original)
	if err != nil {
		return rig.RecipeID{}, rig.Recipe{}, err
	}
	for oldDevice, newDevice := range mappings {
		if err := cloneDirectoryDeep(s.deviceDir(oldDevice), s.deviceDir(newDevice)); err != nil {
			return rig.RecipeID{}, rig.Recipe{}, fmt.Errorf("recipe: cloning device files: %w", err)
		}
	}
	s.recipes.AddUnique(newID, duplicate)
	if err := s.commit(ctx, newTransactionRecord(OpDuplicateRecipe, newID, rig.DeviceID{})); err != nil {
		return rig.RecipeID{}, rig.Recipe{}, err
	}
	return newID, duplicate.Clone(), nil
}

// DeleteRecipe removes the recipe and its device file trees. The active
// recipe cannot be deleted.
func (s *Service) DeleteRecipe(ctx context.Context, id rig.RecipeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.recipes.Remove(id)
	if err != nil {
		return err
	}
	if err := s.commit(ctx, newTransactionRecord(OpDeleteRecipe, id, rig.DeviceID{})); err != nil {
		return err
	}
	for deviceID := range removed.Devices {
		if err := removeDirIfExists(s.deviceDir(deviceID)); err != nil {
			return Irreversible(fmt.Errorf("removing files of device %s: %w", deviceID, err))
		}
	}
	return nil
}

// ActivateRecipe switches the active selection to id. Activation is
// rejected while the current active recipe carries uncommitted edits.
// A snapshot of the aggregate is written to the backup directory before
// the switch.
func (s *Service) ActivateRecipe(ctx context.Context, id rig.RecipeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recipes.HasRecipe(id) {
		return rig.UnknownRecipeError(id)
	}
	if s.recipes.HasActiveChanges() {
		return ErrUncommittedChanges
	}
	if err := s.writeBackup(); err != nil {
		s.logger.Warn("backup snapshot failed", "error", err)
	}
	if err := s.recipes.SetActive(id); err != nil {
		return err
	}
	return s.commit(ctx, newTransactionRecord(OpActivateRecipe, id, rig.DeviceID{}))
}

func (s *Service) writeBackup() error {
	data, err := json.MarshalIndent(s.recipes, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Join(s.root, backupDirName)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s.json", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	return os.WriteFile(filepath.Join(dir, name), data, filePermissions)
}

// UpdateRecipeID re-keys a recipe. The active selection follows the
// rename.
func (s *Service) UpdateRecipeID(ctx context.Context, oldID, newID rig.RecipeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.recipes.UpdateRecipeID(oldID, newID); err != nil {
		return err
	}
	return s.commit(ctx, newTransactionRecord(OpUpdateRecipeID, newID, rig.DeviceID{}))
}

// UpdateRecipeMetadata replaces the recipe's tags. Duplicate tags are
// rejected.
func (s *Service) UpdateRecipeMetadata(ctx context.Context, id rig.RecipeID, tags []rig.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recipes.Get(id)
	if err != nil {
		return err
	}
	seen := make(map[rig.Name]struct{}, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTag, tag)
		}
		seen[tag] = struct{}{}
	}
	r.Tags = append([]rig.Name(nil), tags...)
	return s.commit(ctx, newTransactionRecord(OpUpdateMetadata, id, rig.DeviceID{}))
}

// AddDevice validates and inserts a new device into the recipe,
// returning the minted device id.
func (s *Service) AddDevice(ctx context.Context, recipeID rig.RecipeID, config rig.DeviceConfig) (rig.DeviceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recipes.Get(recipeID)
	if err != nil {
		return rig.DeviceID{}, err
	}
	id := rig.NewDeviceID()
	if err := s.validateDevice(ctx, s.recipes.Variables(), id, config); err != nil {
		return rig.DeviceID{}, err
	}
	if err := r.AddDeviceWithID(id, config); err != nil {
		return rig.DeviceID{}, err
	}
	return id, s.commit(ctx, newTransactionRecord(OpAddDevice, recipeID, id))
}

// DeleteDevice removes the device from the recipe and deletes its file
// tree.
func (s *Service) DeleteDevice(ctx context.Context, recipeID rig.RecipeID, deviceID rig.DeviceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recipes.Get(recipeID)
	if err != nil {
		return err
	}
	if err := r.RemoveDevice(deviceID); err != nil {
		return err
	}
	if err := s.commit(ctx, newTransactionRecord(OpDeleteDevice, recipeID, deviceID)); err != nil {
		return err
	}
	if err := removeDirIfExists(s.deviceDir(deviceID)); err != nil {
		return Irreversible(fmt.Errorf("removing files of device %s: %w", deviceID, err))
	}
	return nil
}

// UpdateDeviceName renames a device within its recipe.
func (s *Service) UpdateDeviceName(ctx context.Context, recipeID rig.RecipeID, deviceID rig.DeviceID, name rig.Name) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recipes.Get(recipeID)
	if err != nil {
		return err
	}
	config, err := r.DeviceByID(deviceID)
	if err != nil {
		return err
	}
	config.DeviceName = name
	r.Devices[deviceID] = config
	return s.commit(ctx, newTransactionRecord(OpUpdateDeviceName, recipeID, deviceID))
}

// UpdateDeviceParams validates and commits new parameters for a device,
// optionally patching shared variables in the same transaction. When
// the device belongs to the active recipe the new parameters are pushed
// to the running device before the store changes.
func (s *Service) UpdateDeviceParams(ctx context.Context, recipeID rig.RecipeID, deviceID rig.DeviceID, params rig.ParamsWithVars, patch rig.VariablesPatch) error {
	return s.updateParams(ctx, recipeID, deviceID, params, patch, true)
}

// UpdateDeviceParamsUncommitted behaves like UpdateDeviceParams but
// retains the previous parameters for a later RestoreCommitted.
func (s *Service) UpdateDeviceParamsUncommitted(ctx context.Context, recipeID rig.RecipeID, deviceID rig.DeviceID, params rig.ParamsWithVars, patch rig.VariablesPatch) error {
	return s.updateParams(ctx, recipeID, deviceID, params, patch, false)
}

func (s *Service) updateParams(ctx context.Context, recipeID rig.RecipeID, deviceID rig.DeviceID, params rig.ParamsWithVars, patch rig.VariablesPatch, committed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recipes.Get(recipeID)
	if err != nil {
		return err
	}
	config, err := r.DeviceByID(deviceID)
	if err != nil {
		return err
	}
	vars := s.recipes.Variables()
	if len(patch) > 0 {
		vars = vars.Patch(patch)
	}

	candidate := config
	candidate.UpdateParamsCommitted(params)
	if err := s.validateDevice(ctx, vars, deviceID, candidate); err != nil {
		return err
	}
	if len(patch) > 0 {
		if err := s.revalidateVariableUsers(ctx, vars, patch, deviceID); err != nil {
			return err
		}
	}

	if recipeID == s.recipes.ActiveID() {
		dctx := DeviceContext{ID: deviceID, Variables: vars, Params: params}
		if err := s.actions.TryApply(ctx, config.DeviceType, dctx); err != nil {
			return err
		}
	}

	if committed {
		config.UpdateParamsCommitted(params)
	} else {
		config.UpdateParamsUncommitted(params)
	}
	r.Devices[deviceID] = config
	if len(patch) > 0 {
		s.recipes.SetVariables(vars)
	}
	return s.commit(ctx, newTransactionRecord(OpUpdateParams, recipeID, deviceID))
}

// revalidateVariableUsers validates every device in any recipe whose
// parameters reference one of the patched variables. A single failure
// rejects the whole update.
func (s *Service) revalidateVariableUsers(ctx context.Context, vars rig.Variables, patch rig.VariablesPatch, skip rig.DeviceID) error {
	for _, recipeID := range s.recipes.IDs() {
		r, err := s.recipes.Get(recipeID)
		if err != nil {
			return err
		}
		for id, config := range r.Devices {
			if id == skip || !referencesAny(config.Params, patch) {
				continue
			}
			if err := s.validateDevice(ctx, vars, id, config); err != nil {
				return err
			}
		}
	}
	return nil
}

func referencesAny(params rig.ParamsWithVars, patch rig.VariablesPatch) bool {
	for _, name := range params.VariableNames() {
		if _, ok := patch[name]; ok {
			return true
		}
	}
	return false
}

// RestoreCommitted rolls a device back to its committed parameters and,
// for active-recipe devices, pushes the restored parameters to the
// running device.
func (s *Service) RestoreCommitted(ctx context.Context, recipeID rig.RecipeID, deviceID rig.DeviceID) (rig.ParamsWithVars, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.recipes.Get(recipeID)
	if err != nil {
		return rig.ParamsWithVars{}, err
	}
	config, err := r.DeviceByID(deviceID)
	if err != nil {
		return rig.ParamsWithVars{}, err
	}
	restored, err := config.RestoreCommitted()
	if err != nil {
		return rig.ParamsWithVars{}, err
	}
	if recipeID == s.recipes.ActiveID() {
		dctx := DeviceContext{ID: deviceID, Variables: s.recipes.Variables(), Params: restored}
		if err := s.actions.TryApply(ctx, config.DeviceType, dctx); err != nil {
			return rig.ParamsWithVars{}, err
		}
	}
	r.Devices[deviceID] = config
	if err := s.commit(ctx, newTransactionRecord(OpRestoreParams, recipeID, deviceID)); err != nil {
		return rig.ParamsWithVars{}, err
	}
	return restored, nil
}

// CommitActive drops the retained committed state of every device in
// the active recipe, making the current parameters permanent.
func (s *Service) CommitActive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, active := s.recipes.Active()
	changed := false
	for deviceID, config := range active.Devices {
		if !config.HasUncommittedChanges() {
			continue
		}
		config.UpdateParamsCommitted(config.Params)
		active.Devices[deviceID] = config
		changed = true
	}
	if !changed {
		return nil
	}
	return s.commit(ctx, newTransactionRecord(OpCommitActive, id, rig.DeviceID{}))
}
