package ticker

import (
	"context"
	"testing"
	"time"

	"github.com/mineichen/rigcore/internal/actor"
	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/rig"
)

func spawnTicker(t *testing.T, intervalMs int) (*actor.System, rig.DeviceID) {
	t.Helper()
	system := actor.NewSystem()
	ctx, cancel := context.WithCancel(context.Background())
	dctx := recipe.DeviceContext{
		ID:     rig.NewDeviceID(),
		Params: rig.MustParams(map[string]any{"interval_ms": intervalMs}),
	}
	handle, err := New().Spawn(ctx, dctx, recipe.SpawnProvider{System: system})
	if err != nil {
		cancel()
		t.Fatalf("Spawn: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer waitCancel()
		if err := handle.Wait(waitCtx); err != nil {
			t.Errorf("ticker did not stop: %v", err)
		}
	})
	return system, dctx.ID
}

func waitForCount(t *testing.T, system *actor.System, id rig.DeviceID, atLeast int64, within time.Duration) int64 {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		count, err := actor.Ask(context.Background(), system, id, ReadCountMessage{})
		if err != nil {
			t.Fatalf("ReadCount: %v", err)
		}
		if count >= atLeast {
			return count
		}
		if time.Now().After(deadline) {
			t.Fatalf("count stuck at %d, want >= %d", count, atLeast)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestValidate(t *testing.T) {
	driver := New()
	tests := []struct {
		name    string
		params  any
		wantErr bool
	}{
		{name: "defaults", params: map[string]any{}},
		{name: "explicit", params: map[string]any{"interval_ms": 50}},
		{name: "zero", params: map[string]any{"interval_ms": 0}, wantErr: true},
		{name: "too large", params: map[string]any{"interval_ms": 4_000_000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dctx := recipe.DeviceContext{ID: rig.NewDeviceID(), Params: rig.MustParams(tt.params)}
			err := driver.Validate(context.Background(), dctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate: err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestTicksIncrementCount(t *testing.T) {
	system, id := spawnTicker(t, 5)
	waitForCount(t, system, id, 3, 5*time.Second)
}

func TestTryApplyChangesInterval(t *testing.T) {
	// Spawn with an interval far beyond the test duration: any observed
	// tick must come from the applied faster interval.
	system, id := spawnTicker(t, maxIntervalMs)

	time.Sleep(20 * time.Millisecond)
	count, err := actor.Ask(context.Background(), system, id, ReadCountMessage{})
	if err != nil {
		t.Fatalf("ReadCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("unexpected ticks before apply: %d", count)
	}

	dctx := recipe.DeviceContext{ID: id, Params: rig.MustParams(map[string]any{"interval_ms": 2})}
	if err := New().TryApply(context.Background(), system, dctx); err != nil {
		t.Fatalf("TryApply: %v", err)
	}
	waitForCount(t, system, id, 2, 5*time.Second)
}

func TestSetIntervalRejectsOutOfRange(t *testing.T) {
	system, id := spawnTicker(t, 1000)
	_, err := actor.Ask(context.Background(), system, id, SetIntervalMessage{IntervalMs: -1})
	if err == nil {
		t.Fatal("expected range error")
	}
}
