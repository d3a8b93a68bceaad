package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mineichen/rigcore/internal/recipe"
	"github.com/mineichen/rigcore/internal/rig"
)

type publishCall struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeBroker struct {
	calls []publishCall
	err   error
}

func (f *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.calls = append(f.calls, publishCall{topic: topic, payload: payload, qos: qos, retained: retained})
	return f.err
}

func testRecord(op string) recipe.TransactionRecord {
	return recipe.TransactionRecord{
		Key:       uuid.New(),
		Operation: op,
		RecipeID:  rig.NewRecipeID(),
		DeviceID:  rig.NewDeviceID(),
		Occurred:  time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestTransactionCommittedPublishesEvent(t *testing.T) {
	b := &fakeBroker{}
	p := newPublisher(b, 1, nil)

	rec := testRecord(recipe.OpAddDevice)
	p.TransactionCommitted(context.Background(), rec)

	if len(b.calls) != 1 {
		t.Fatalf("got %d publishes, want 1", len(b.calls))
	}
	call := b.calls[0]
	if call.topic != "rigcore/recipe/transaction/"+recipe.OpAddDevice {
		t.Errorf("topic = %q", call.topic)
	}
	if call.retained {
		t.Error("transaction events must not be retained")
	}
	if call.qos != 1 {
		t.Errorf("qos = %d, want 1", call.qos)
	}

	var event transactionEvent
	if err := json.Unmarshal(call.payload, &event); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if event.Key != rec.Key.String() || event.RecipeID != rec.RecipeID.String() {
		t.Errorf("ids not carried: %+v", event)
	}
	if event.DeviceID != rec.DeviceID.String() {
		t.Errorf("DeviceID = %q, want %q", event.DeviceID, rec.DeviceID)
	}
	if event.Occurred != "2026-04-02T09:30:00Z" {
		t.Errorf("Occurred = %q", event.Occurred)
	}
}

func TestTransactionCommittedOmitsZeroDeviceID(t *testing.T) {
	b := &fakeBroker{}
	p := newPublisher(b, 0, nil)

	rec := testRecord(recipe.OpImport)
	rec.DeviceID = rig.DeviceID{}
	p.TransactionCommitted(context.Background(), rec)

	if len(b.calls) != 1 {
		t.Fatalf("got %d publishes, want 1", len(b.calls))
	}
	var raw map[string]any
	if err := json.Unmarshal(b.calls[0].payload, &raw); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if _, ok := raw["device_id"]; ok {
		t.Error("zero device id should be omitted from the payload")
	}
}

func TestActivationUpdatesRetainedActiveTopic(t *testing.T) {
	b := &fakeBroker{}
	p := newPublisher(b, 1, nil)

	rec := testRecord(recipe.OpActivateRecipe)
	p.TransactionCommitted(context.Background(), rec)

	if len(b.calls) != 2 {
		t.Fatalf("got %d publishes, want 2", len(b.calls))
	}
	active := b.calls[1]
	if active.topic != "rigcore/recipe/active" {
		t.Errorf("topic = %q", active.topic)
	}
	if !active.retained {
		t.Error("active recipe state must be retained")
	}

	var state map[string]string
	if err := json.Unmarshal(active.payload, &state); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if state["recipe_id"] != rec.RecipeID.String() {
		t.Errorf("recipe_id = %q, want %q", state["recipe_id"], rec.RecipeID)
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	b := &fakeBroker{err: errors.New("broker down")}
	p := newPublisher(b, 1, nil)

	// Must not panic or propagate; the transaction is already durable.
	p.TransactionCommitted(context.Background(), testRecord(recipe.OpDeleteRecipe))
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	cases := map[string]string{
		topics.Transaction("add_recipe"): "rigcore/recipe/transaction/add_recipe",
		topics.ActiveRecipe():            "rigcore/recipe/active",
		topics.SystemStatus():            "rigcore/system/status",
		topics.AllTransactions():         "rigcore/recipe/transaction/+",
		topics.AllTopics():               "rigcore/#",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("topic = %q, want %q", got, want)
		}
	}
}
