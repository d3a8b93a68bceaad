package devices

import (
	"context"
	"fmt"
	"sort"

	"github.com/mineichen/rigcore/internal/actor"
	"github.com/mineichen/rigcore/internal/recipe"
)

// Driver implements one device type.
type Driver interface {
	// DeviceType returns the type tag the driver is registered under.
	DeviceType() string

	// Validate judges a configuration without side effects.
	Validate(ctx context.Context, dctx recipe.DeviceContext) error

	// TryApply pushes updated parameters to the running actor.
	TryApply(ctx context.Context, system *actor.System, dctx recipe.DeviceContext) error

	// Spawn starts the device actor.
	Spawn(ctx context.Context, dctx recipe.DeviceContext, provider recipe.SpawnProvider) (recipe.TaskHandle, error)
}

// Registry dispatches recipe.DeviceActions calls to the driver matching
// the device type tag.
type Registry struct {
	system  *actor.System
	drivers map[string]Driver
}

// NewRegistry builds a registry over the given drivers. Registering two
// drivers for the same type tag panics.
func NewRegistry(system *actor.System, drivers ...Driver) *Registry {
	byType := make(map[string]Driver, len(drivers))
	for _, driver := range drivers {
		if _, exists := byType[driver.DeviceType()]; exists {
			panic(fmt.Sprintf("devices: driver %q registered twice", driver.DeviceType()))
		}
		byType[driver.DeviceType()] = driver
	}
	return &Registry{system: system, drivers: byType}
}

// DeviceTypes returns all registered type tags in sorted order.
func (r *Registry) DeviceTypes() []string {
	types := make([]string, 0, len(r.drivers))
	for t := range r.drivers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) driver(deviceType string) (Driver, error) {
	driver, ok := r.drivers[deviceType]
	if !ok {
		return nil, UnknownDeviceTypeError(deviceType)
	}
	return driver, nil
}

// Validate implements recipe.DeviceActions.
func (r *Registry) Validate(ctx context.Context, deviceType string, dctx recipe.DeviceContext) error {
	driver, err := r.driver(deviceType)
	if err != nil {
		return err
	}
	return driver.Validate(ctx, dctx)
}

// TryApply implements recipe.DeviceActions.
func (r *Registry) TryApply(ctx context.Context, deviceType string, dctx recipe.DeviceContext) error {
	driver, err := r.driver(deviceType)
	if err != nil {
		return err
	}
	return driver.TryApply(ctx, r.system, dctx)
}

// Spawn implements recipe.DeviceActions.
func (r *Registry) Spawn(ctx context.Context, deviceType string, dctx recipe.DeviceContext, provider recipe.SpawnProvider) (recipe.TaskHandle, error) {
	driver, err := r.driver(deviceType)
	if err != nil {
		return recipe.TaskHandle{}, err
	}
	return driver.Spawn(ctx, dctx, provider)
}
