package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/rig"
)

type recordedPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]interface{}
	timestamp   time.Time
}

type fakeWriter struct {
	points []recordedPoint
}

func (f *fakeWriter) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	f.points = append(f.points, recordedPoint{
		measurement: measurement,
		tags:        tags,
		fields:      fields,
		timestamp:   timestamp,
	})
}

func TestRecordMessage(t *testing.T) {
	w := &fakeWriter{}
	r := &Recorder{writer: w}
	id := rig.NewDeviceID()

	r.RecordMessage(id, "emucam.CaptureImageMessage", 25*time.Millisecond, nil)
	r.RecordMessage(id, "emucam.UpdateSettingsMessage", time.Millisecond, errors.New("out of range"))

	if len(w.points) != 2 {
		t.Fatalf("got %d points, want 2", len(w.points))
	}

	ok := w.points[0]
	if ok.measurement != "device_messages" {
		t.Errorf("measurement = %q", ok.measurement)
	}
	if ok.tags["device_id"] != id.String() || ok.tags["message_type"] != "emucam.CaptureImageMessage" {
		t.Errorf("tags = %v", ok.tags)
	}
	if ok.tags["status"] != "ok" {
		t.Errorf("status = %q, want ok", ok.tags["status"])
	}
	if got := ok.fields["duration_ms"].(float64); got != 25 {
		t.Errorf("duration_ms = %v, want 25", got)
	}

	failed := w.points[1]
	if failed.tags["status"] != "error" {
		t.Errorf("status = %q, want error", failed.tags["status"])
	}
}

func TestRecordTransaction(t *testing.T) {
	w := &fakeWriter{}
	r := &Recorder{writer: w}

	rec := recipe.TransactionRecord{
		Key:       uuid.New(),
		Operation: recipe.OpActivateRecipe,
		RecipeID:  rig.NewRecipeID(),
		Occurred:  time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	r.RecordTransaction(rec)

	if len(w.points) != 1 {
		t.Fatalf("got %d points, want 1", len(w.points))
	}
	p := w.points[0]
	if p.measurement != "recipe_transactions" {
		t.Errorf("measurement = %q", p.measurement)
	}
	if p.tags["operation"] != recipe.OpActivateRecipe {
		t.Errorf("operation = %q", p.tags["operation"])
	}
	if p.fields["recipe_id"] != rec.RecipeID.String() {
		t.Errorf("recipe_id = %v", p.fields["recipe_id"])
	}
	if _, ok := p.fields["device_id"]; ok {
		t.Error("zero device id should be omitted")
	}
	if !p.timestamp.Equal(rec.Occurred) {
		t.Errorf("timestamp = %v, want commit time %v", p.timestamp, rec.Occurred)
	}
}

func TestConsumeTransactions(t *testing.T) {
	w := &fakeWriter{}
	r := &Recorder{writer: w}

	ch := make(chan recipe.TransactionRecord, 2)
	ch <- recipe.TransactionRecord{Key: uuid.New(), Operation: recipe.OpAddRecipe, RecipeID: rig.NewRecipeID(), Occurred: time.Now()}
	ch <- recipe.TransactionRecord{Key: uuid.New(), Operation: recipe.OpDeleteRecipe, RecipeID: rig.NewRecipeID(), Occurred: time.Now()}
	close(ch)

	r.ConsumeTransactions(ch)

	if len(w.points) != 2 {
		t.Fatalf("got %d points, want 2", len(w.points))
	}
	if w.points[1].tags["operation"] != recipe.OpDeleteRecipe {
		t.Errorf("operation = %q", w.points[1].tags["operation"])
	}
}
