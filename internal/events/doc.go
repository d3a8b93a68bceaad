// Package events publishes rigcore lifecycle events over MQTT.
//
// This package manages:
//   - Broker connection with automatic reconnection and backoff
//   - Last Will and Testament for offline detection
//   - Publishing committed recipe transactions as JSON events
//   - A retained active-recipe topic for late subscribers
//
// Event delivery is best effort: a transaction is already durable on
// disk before the event is published, so a publish failure is logged
// and never propagated back into the transaction path.
//
// Thread Safety:
//   - All Client and Publisher methods are safe for concurrent use.
//
// Usage:
//
//	client, err := events.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//	sink := events.NewPublisher(client, byte(cfg.MQTT.QoS), logger)
package events
