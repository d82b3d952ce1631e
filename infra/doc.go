// Package infra holds the adapters that move simulation output out of the
// process: metrics exporters, brokers, the WebSocket hub and the trace file.
// They depend only on the interfaces defined in the core packages.
package infra
