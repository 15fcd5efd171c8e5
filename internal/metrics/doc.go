// Package metrics records gateway telemetry — telegram throughput,
// RoutingBusy backpressure events, and Secure session lifecycle — to
// InfluxDB via the gateway's influxdb client wrapper.
package metrics
