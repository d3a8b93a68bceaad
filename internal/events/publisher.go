package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mineichen/rigcore/internal/recipe"
)

// broker is the publishing surface Publisher needs. *Client satisfies
// it; tests substitute an in-memory fake.
type broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// transactionEvent is the wire form of a committed transaction.
type transactionEvent struct {
	Key       string `json:"key"`
	Operation string `json:"operation"`
	RecipeID  string `json:"recipe_id"`
	DeviceID  string `json:"device_id,omitempty"`
	Occurred  string `json:"occurred_at"`
}

// Publisher turns committed recipe transactions into MQTT events.
// It implements recipe.EventSink.
//
// Every commit is published to rigcore/recipe/transaction/{operation}.
// Recipe activations additionally update the retained
// rigcore/recipe/active topic so late subscribers learn the active
// recipe without replaying the event stream.
type Publisher struct {
	broker broker
	qos    byte
	logger recipe.Logger
}

// NewPublisher creates a Publisher over a connected client.
//
// Parameters:
//   - client: Connected MQTT client
//   - qos: QoS level for event publishes (0, 1, or 2)
//   - logger: Destination for publish failures; nil discards them
func NewPublisher(client *Client, qos byte, logger recipe.Logger) *Publisher {
	return newPublisher(client, qos, logger)
}

func newPublisher(b broker, qos byte, logger recipe.Logger) *Publisher {
	if logger == nil {
		logger = recipe.NopLogger()
	}
	return &Publisher{broker: b, qos: qos, logger: logger}
}

// TransactionCommitted implements recipe.EventSink.
//
// The transaction is already durable when this is called, so failures
// are logged and swallowed: the event stream is advisory.
func (p *Publisher) TransactionCommitted(_ context.Context, rec recipe.TransactionRecord) {
	event := transactionEvent{
		Key:       rec.Key.String(),
		Operation: rec.Operation,
		RecipeID:  rec.RecipeID.String(),
		Occurred:  rec.Occurred.UTC().Format(time.RFC3339Nano),
	}
	if !rec.DeviceID.IsZero() {
		event.DeviceID = rec.DeviceID.String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode transaction event", "operation", rec.Operation, "error", err)
		return
	}

	topic := Topics{}.Transaction(rec.Operation)
	if err := p.broker.Publish(topic, payload, p.qos, false); err != nil {
		p.logger.Warn("failed to publish transaction event", "topic", topic, "error", err)
	}

	if rec.Operation == recipe.OpActivateRecipe {
		p.publishActiveRecipe(rec)
	}
}

// publishActiveRecipe updates the retained active-recipe topic.
func (p *Publisher) publishActiveRecipe(rec recipe.TransactionRecord) {
	payload, err := json.Marshal(map[string]string{
		"recipe_id":    rec.RecipeID.String(),
		"activated_at": rec.Occurred.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		p.logger.Error("failed to encode active recipe state", "error", err)
		return
	}

	topic := Topics{}.ActiveRecipe()
	if err := p.broker.Publish(topic, payload, p.qos, true); err != nil {
		p.logger.Warn("failed to publish active recipe state", "topic", topic, "error", err)
	}
}
