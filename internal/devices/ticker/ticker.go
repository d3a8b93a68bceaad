// Package ticker implements a periodic counter device. A side goroutine
// owns the timer and feeds ticks through the mailbox, so the count is
// only ever mutated under the actor's exclusive state access.
package ticker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mineichen/rigcore/internal/actor"
	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/rig"
)

// DeviceType is the type tag the driver registers under.
const DeviceType = "ticker"

const (
	minIntervalMs = 1
	maxIntervalMs = 3_600_000
)

// Params configures the ticker.
type Params struct {
	IntervalMs int `json:"interval_ms"`
}

func defaultParams() Params {
	return Params{IntervalMs: 1000}
}

func (p Params) validate() error {
	if p.IntervalMs < minIntervalMs || p.IntervalMs > maxIntervalMs {
		return fmt.Errorf("ticker: interval_ms %d out of range [%d, %d]", p.IntervalMs, minIntervalMs, maxIntervalMs)
	}
	return nil
}

func (p Params) interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

func decodeParams(dctx recipe.DeviceContext) (Params, error) {
	resolved, err := dctx.Resolve()
	if err != nil {
		return Params{}, err
	}
	params := defaultParams()
	if err := resolved.Decode(&params); err != nil {
		return Params{}, fmt.Errorf("ticker: %w", err)
	}
	return params, nil
}

// ReadCountMessage reads the number of ticks since the actor started.
type ReadCountMessage struct{}

// Output implements actor.Message.
func (ReadCountMessage) Output() int64 { return 0 }

// SetIntervalMessage changes the tick interval of the running device.
type SetIntervalMessage struct {
	IntervalMs int
}

// Output implements actor.Message.
func (SetIntervalMessage) Output() struct{} { return struct{}{} }

// tickMessage is the internal heartbeat sent by the timer goroutine.
type tickMessage struct{}

func (tickMessage) Output() struct{} { return struct{}{} }

type state struct {
	count   int64
	updates chan time.Duration
}

// Driver implements devices.Driver for the ticker.
type Driver struct{}

// New returns the ticker driver.
func New() *Driver {
	return &Driver{}
}

// DeviceType implements devices.Driver.
func (*Driver) DeviceType() string {
	return DeviceType
}

// Validate implements devices.Driver.
func (*Driver) Validate(_ context.Context, dctx recipe.DeviceContext) error {
	params, err := decodeParams(dctx)
	if err != nil {
		return err
	}
	return params.validate()
}

// TryApply implements devices.Driver.
func (*Driver) TryApply(ctx context.Context, system *actor.System, dctx recipe.DeviceContext) error {
	params, err := decodeParams(dctx)
	if err != nil {
		return err
	}
	if err := params.validate(); err != nil {
		return err
	}
	_, err = actor.Ask(ctx, system, dctx.ID, SetIntervalMessage{IntervalMs: params.IntervalMs})
	return err
}

// Spawn implements devices.Driver.
func (*Driver) Spawn(ctx context.Context, dctx recipe.DeviceContext, provider recipe.SpawnProvider) (recipe.TaskHandle, error) {
	params, err := decodeParams(dctx)
	if err != nil {
		return recipe.TaskHandle{}, err
	}
	if err := params.validate(); err != nil {
		return recipe.TaskHandle{}, err
	}

	updates := make(chan time.Duration, 1)
	device := actor.Register[state](provider.System, dctx.ID)
	actor.Handle(device, func(_ context.Context, st *state, _ ReadCountMessage) actor.Response[int64] {
		return actor.Reply(st.count, nil)
	})
	actor.Handle(device, func(_ context.Context, st *state, msg SetIntervalMessage) actor.Response[struct{}] {
		next := Params{IntervalMs: msg.IntervalMs}
		if err := next.validate(); err != nil {
			return actor.Reply(struct{}{}, err)
		}
		// Keep only the most recent interval if the timer goroutine
		// lags behind.
		select {
		case <-st.updates:
		default:
		}
		st.updates <- next.interval()
		return actor.Reply(struct{}{}, nil)
	})
	actor.Handle(device, func(_ context.Context, st *state, _ tickMessage) actor.Response[struct{}] {
		st.count++
		return actor.Reply(struct{}{}, nil)
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runTimer(ctx, provider.System, dctx.ID, params.interval(), updates)
	}()
	go func() {
		defer wg.Done()
		device.Run(ctx, state{updates: updates})
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	logger := provider.Logger
	if logger == nil {
		logger = recipe.NopLogger()
	}
	logger.Info("ticker started", "device_id", dctx.ID.String(), "interval_ms", params.IntervalMs)
	return recipe.RunningTask(done), nil
}

// runTimer feeds ticks into the actor's mailbox. A full mailbox skips
// the tick instead of blocking the timer.
func runTimer(ctx context.Context, system *actor.System, id rig.DeviceID, interval time.Duration, updates <-chan time.Duration) {
	timer := time.NewTicker(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-updates:
			timer.Reset(next)
		case <-timer.C:
			if err := actor.Tell(system, id, tickMessage{}); err != nil && !errors.Is(err, actor.ErrBusy) {
				return
			}
		}
	}
}
