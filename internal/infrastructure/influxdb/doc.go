// Package influxdb provides time-series telemetry storage for the daemon.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes, and health monitoring.
//
// # Purpose
//
// This package records operational telemetry:
//   - Device heartbeats and presence transitions
//   - Access record throughput per terminal
//   - Job dispatch outcomes and queue depth
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "facegate",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteHeartbeat("dev-entrance-01")
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly. The sink is optional: Connect returns ErrDisabled when the
// config turns it off, and callers run without telemetry.
package influxdb
