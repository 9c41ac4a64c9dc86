// Package influxdb records Thing telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Property values,
// event occurrences and action status transitions produced by the WoT
// adapter are written as points tagged with the device ID:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteProperty("http---lamp.local", "brightness", 42.0, time.Now())
//
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// failures are reported through SetOnError.
package influxdb
