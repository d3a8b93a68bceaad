// Package emucam implements an emulated camera device. Captures are
// deferred so a slow exposure never blocks the actor's mailbox;
// settings updates and reads stay immediate.
package emucam

import (
	"context"
	"fmt"
	"time"

	"github.com/mineichen/rigcore/internal/actor"
	"github.com/mineichen/rigcore/internal/recipe"
)

// DeviceType is the type tag the driver registers under.
const DeviceType = "emucam"

const (
	maxExposureMs = 10_000
	maxDimension  = 4096
)

// Params configures the emulated camera.
type Params struct {
	// ExposureMs is the simulated exposure time per capture.
	ExposureMs float64 `json:"exposure_ms"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

func defaultParams() Params {
	return Params{ExposureMs: 20, Width: 64, Height: 48}
}

func (p Params) validate() error {
	if p.ExposureMs <= 0 || p.ExposureMs > maxExposureMs {
		return fmt.Errorf("emucam: exposure_ms %v out of range (0, %d]", p.ExposureMs, maxExposureMs)
	}
	if p.Width <= 0 || p.Width > maxDimension || p.Height <= 0 || p.Height > maxDimension {
		return fmt.Errorf("emucam: dimensions %dx%d out of range [1, %d]", p.Width, p.Height, maxDimension)
	}
	return nil
}

func decodeParams(dctx recipe.DeviceContext) (Params, error) {
	resolved, err := dctx.Resolve()
	if err != nil {
		return Params{}, err
	}
	params := defaultParams()
	if err := resolved.Decode(&params); err != nil {
		return Params{}, fmt.Errorf("emucam: %w", err)
	}
	return params, nil
}

// Image is one captured frame.
type Image struct {
	Width    int
	Height   int
	Sequence int64
	Pixels   []byte
}

// CaptureImageMessage requests one frame. The capture runs deferred;
// the camera accepts further messages while exposing.
type CaptureImageMessage struct{}

// Output implements actor.Message.
func (CaptureImageMessage) Output() Image { return Image{} }

// UpdateSettingsMessage replaces the camera settings and answers with
// the settings now in force.
type UpdateSettingsMessage struct {
	Params Params
}

// Output implements actor.Message.
func (UpdateSettingsMessage) Output() Params { return Params{} }

// ReadSettingsMessage reads the current settings.
type ReadSettingsMessage struct{}

// Output implements actor.Message.
func (ReadSettingsMessage) Output() Params { return Params{} }

type state struct {
	params   Params
	sequence int64
}

// Driver implements devices.Driver for the emulated camera.
type Driver struct{}

// New returns the emucam driver.
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

// TryApply implements devices.Driver by pushing the new settings to the
// running actor.
func (*Driver) TryApply(ctx context.Context, system *actor.System, dctx recipe.DeviceContext) error {
	params, err := decodeParams(dctx)
	if err != nil {
		return err
	}
	if err := params.validate(); err != nil {
		return err
	}
	_, err = actor.Ask(ctx, system, dctx.ID, UpdateSettingsMessage{Params: params})
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

	device := actor.Register[state](provider.System, dctx.ID)
	actor.Handle(device, func(_ context.Context, st *state, _ ReadSettingsMessage) actor.Response[Params] {
		return actor.Reply(st.params, nil)
	})
	actor.Handle(device, func(_ context.Context, st *state, msg UpdateSettingsMessage) actor.Response[Params] {
		if err := msg.Params.validate(); err != nil {
			return actor.Reply(Params{}, err)
		}
		st.params = msg.Params
		return actor.Reply(st.params, nil)
	})
	actor.Handle(device, func(_ context.Context, st *state, _ CaptureImageMessage) actor.Response[Image] {
		st.sequence++
		sequence := st.sequence
		params := st.params
		return actor.Defer(func(taskCtx context.Context) (Image, error) {
			exposure := time.Duration(params.ExposureMs * float64(time.Millisecond))
			select {
			case <-time.After(exposure):
			case <-taskCtx.Done():
				return Image{}, taskCtx.Err()
			}
			return renderFrame(params, sequence), nil
		})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		device.Run(ctx, state{params: params})
	}()
	logger := provider.Logger
	if logger == nil {
		logger = recipe.NopLogger()
	}
	logger.Info("emucam started", "device_id", dctx.ID.String(), "width", params.Width, "height", params.Height)
	return recipe.RunningTask(done), nil
}

// renderFrame produces a deterministic gradient so captures are
// reproducible in tests.
func renderFrame(params Params, sequence int64) Image {
	pixels := make([]byte, params.Width*params.Height)
	for y := 0; y < params.Height; y++ {
		for x := 0; x < params.Width; x++ {
			pixels[y*params.Width+x] = byte((x + y + int(sequence)) % 256)
		}
	}
	return Image{Width: params.Width, Height: params.Height, Sequence: sequence, Pixels: pixels}
}
