// Package runtime supervises the device actors of the active recipe.
// It spawns them on startup, tears the generation down and starts the
// next one when another recipe is activated, and stops everything on
// shutdown. Devices never call back into the recipe service; the
// supervisor reacts to committed transactions instead.
package runtime

import (
	"context"
	"time"

	"github.com/mineichen/rigcore/internal/actor"
	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/rig"
)

// stopTimeout bounds how long a device generation may take to wind
// down before the supervisor gives up waiting.
const stopTimeout = 30 * time.Second

// Logger defines the logging interface used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Supervisor runs one generation of device actors per active recipe.
type Supervisor struct {
	system  *actor.System
	service *recipe.Service
	actions recipe.DeviceActions
	logger  Logger

	guard   actor.ActivationGuard
	handles []recipe.TaskHandle
}

// New builds a supervisor over the given collaborators.
func New(system *actor.System, service *recipe.Service, actions recipe.DeviceActions, logger Logger) *Supervisor {
	return &Supervisor{
		system:  system,
		service: service,
		actions: actions,
		logger:  logger,
	}
}

// Run spawns the active recipe's devices and blocks until ctx is
// cancelled, respawning the whole generation whenever a committed
// transaction changes which devices should be running. Cancellation is
// the normal way to stop the supervisor and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	events, cancelSub := s.service.Subscribe()
	defer cancelSub()

	s.respawn(ctx)
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-events:
			if !ok {
				return nil
			}
			if s.needsRespawn(rec) {
				s.logger.Info("respawning device generation", "trigger", rec.Operation)
				s.respawn(ctx)
			}
		}
	}
}

// needsRespawn reports whether the transaction changed the set of
// devices that should be running. Parameter updates are excluded: they
// reach running devices through TryApply.
func (s *Supervisor) needsRespawn(rec recipe.TransactionRecord) bool {
	switch rec.Operation {
	case recipe.OpActivateRecipe, recipe.OpImport:
		return true
	case recipe.OpAddDevice, recipe.OpDeleteDevice:
		activeID, _ := s.service.ActiveRecipe()
		return rec.RecipeID == activeID
	default:
		return false
	}
}

// respawn cancels the previous generation, waits for it to stop and
// spawns every device of the now-active recipe. A device failing to
// spawn does not prevent the others from starting.
func (s *Supervisor) respawn(parent context.Context) {
	runCtx := s.guard.Begin(parent)
	s.waitStopped()

	activeID, active := s.service.ActiveRecipe()
	vars := s.service.State().Variables()
	provider := recipe.SpawnProvider{
		System: s.system,
		Files:  s.service.Files(),
		Logger: s.logger,
	}

	started := 0
	for deviceID, config := range active.Devices {
		dctx := recipe.DeviceContext{ID: deviceID, Variables: vars, Params: config.Params}
		handle, err := s.actions.Spawn(runCtx, config.DeviceType, dctx, provider)
		if err != nil {
			s.logger.Error("device failed to spawn",
				"device_id", deviceID.String(),
				"device_type", config.DeviceType,
				"error", err)
			continue
		}
		s.handles = append(s.handles, handle)
		started++
	}
	s.logger.Info("device generation running",
		"recipe_id", activeID.String(),
		"devices", started)
}

func (s *Supervisor) shutdown() {
	s.guard.Abort()
	s.waitStopped()
	s.logger.Info("device supervisor stopped")
}

// waitStopped blocks until every handle of the previous generation
// completed. The generation's context is already cancelled by the
// caller, so this only waits for actors to drain.
func (s *Supervisor) waitStopped() {
	if len(s.handles) == 0 {
		return
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, handle := range s.handles {
		if err := handle.Wait(waitCtx); err != nil {
			s.logger.Error("device generation did not stop in time", "error", err)
			break
		}
	}
	s.handles = s.handles[:0]
}

// RunningDevices returns the ids of the currently registered actors.
func (s *Supervisor) RunningDevices() []rig.DeviceID {
	ids := make([]rig.DeviceID, 0, s.system.DeviceCount())
	_, active := s.service.ActiveRecipe()
	for deviceID := range active.Devices {
		if s.system.HasDevice(deviceID) {
			ids = append(ids, deviceID)
		}
	}
	return ids
}
