// Package telemetry records rigcore runtime metrics in InfluxDB.
//
// This package manages:
//   - InfluxDB v2 connectivity with token auth and batched writes
//   - Per-message actor telemetry (dispatch latency, outcome)
//   - Committed transaction counts per operation
//
// Writes are non-blocking: points are batched by the underlying client
// and flushed on size threshold or timer. Async write failures surface
// through SetOnError, never through the write path, so telemetry can
// sit on the actor hot path without adding latency.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//
// Usage:
//
//	client, err := telemetry.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//	system.SetRecorder(telemetry.NewRecorder(client))
package telemetry
