// Package metrics exports snapshots to Prometheus and InfluxDB. PromSink keeps
// gauges of the latest household state per session; InfluxSink writes every
// snapshot as points so a dashboard can chart a run.
package metrics
