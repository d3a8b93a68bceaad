package telemetry

import (
	"time"

	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/rig"
)

// Measurement names.
const (
	measurementMessages     = "device_messages"
	measurementTransactions = "recipe_transactions"
)

// pointWriter is the write surface Recorder needs. *Client satisfies
// it; tests substitute an in-memory fake.
type pointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// Recorder turns actor dispatches and committed transactions into
// InfluxDB points. It implements actor.Recorder.
//
// RecordMessage sits on the actor hot path, so it must never block:
// points go through the batched non-blocking write API.
type Recorder struct {
	writer pointWriter
}

// NewRecorder creates a Recorder over a connected client.
func NewRecorder(client *Client) *Recorder {
	return &Recorder{writer: client}
}

// RecordMessage implements actor.Recorder.
//
// Each handled message becomes one point in device_messages, tagged by
// device, message type and outcome, with the handler latency as field.
//
// Parameters:
//   - deviceID: The device that handled the message
//   - messageType: Go type name of the message
//   - elapsed: Time until the response was produced (for deferred
//     responses this spans the whole background computation)
//   - err: Handler outcome; non-nil marks the point status=error
func (r *Recorder) RecordMessage(deviceID rig.DeviceID, messageType string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	r.writer.WritePointWithTime(
		measurementMessages,
		map[string]string{
			"device_id":    deviceID.String(),
			"message_type": messageType,
			"status":       status,
		},
		map[string]interface{}{
			"duration_ms": float64(elapsed) / float64(time.Millisecond),
		},
		time.Now(),
	)
}

// RecordTransaction writes a committed recipe transaction as a point
// in recipe_transactions, timestamped with the commit time.
//
// Recipe and device ids are fields, not tags: they are high
// cardinality and are never grouped by in dashboards.
func (r *Recorder) RecordTransaction(rec recipe.TransactionRecord) {
	fields := map[string]interface{}{
		"key":       rec.Key.String(),
		"recipe_id": rec.RecipeID.String(),
	}
	if !rec.DeviceID.IsZero() {
		fields["device_id"] = rec.DeviceID.String()
	}

	r.writer.WritePointWithTime(
		measurementTransactions,
		map[string]string{
			"operation": rec.Operation,
		},
		fields,
		rec.Occurred,
	)
}

// ConsumeTransactions records every transaction arriving on ch until
// it is closed. Run it in its own goroutine against the channel
// returned by the recipe service's Subscribe.
func (r *Recorder) ConsumeTransactions(ch <-chan recipe.TransactionRecord) {
	for rec := range ch {
		r.RecordTransaction(rec)
	}
}
