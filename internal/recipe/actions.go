package recipe

import (
	"context"

	"github.com/mineichen/rigcore/internal/actor"
	"github.com/mineichen/rigcore/internal/rig"
)

// DeviceContext carries everything a device type needs to judge or apply
// a configuration: the device identity, the variable table in force and
// the unresolved parameters.
type DeviceContext struct {
	ID        rig.DeviceID
	Variables rig.Variables
	Params    rig.ParamsWithVars
}

// Resolve substitutes the context's variables into its parameters.
func (c DeviceContext) Resolve() (rig.ResolvedParams, error) {
	return c.Variables.Resolve(c.Params)
}

// DeviceActions is the collaborator through which the transaction
// service talks to the device registry. The service never inspects
// device internals — only these three operations.
type DeviceActions interface {
	// Validate judges a configuration without side effects. Called for
	// every device of a candidate recipe; one failure rejects the whole
	// recipe.
	Validate(ctx context.Context, deviceType string, dctx DeviceContext) error

	// TryApply pushes updated parameters to a running device.
	TryApply(ctx context.Context, deviceType string, dctx DeviceContext) error

	// Spawn starts the device actor for a configuration. The returned
	// handle completes when the actor has fully stopped.
	Spawn(ctx context.Context, deviceType string, dctx DeviceContext, provider SpawnProvider) (TaskHandle, error)
}

// SpawnProvider bundles the runtime collaborators handed to a device on
// spawn.
type SpawnProvider struct {
	System *actor.System
	Files  *FileServiceBuilder
	Logger Logger
}

// TaskHandle tracks a spawned device actor.
type TaskHandle struct {
	done <-chan struct{}
}

// RunningTask wraps a completion channel into a TaskHandle.
func RunningTask(done <-chan struct{}) TaskHandle {
	return TaskHandle{done: done}
}

// Wait blocks until the actor stopped or ctx is cancelled.
func (h TaskHandle) Wait(ctx context.Context) error {
	if h.done == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InitRecipeListener seeds devices into newly created default recipes.
type InitRecipeListener func(r *rig.Recipe)

// Logger defines the logging interface used by the recipe service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
