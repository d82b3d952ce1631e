// Package sink defines where published snapshots go. Concrete sinks live in
// infra (Prometheus, InfluxDB, MQTT, Kafka, WebSocket, JSONL files) and are
// instantiated from configuration through a factory.Registry.
package sink

import (
	"errors"

	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
)

// Sink receives one snapshot per tick per session.
type Sink interface {
	RecordSnapshot(sessionID string, snap model.Snapshot) error
}

// DaySummaryRecorder is implemented by sinks that also keep daily totals.
type DaySummaryRecorder interface {
	RecordDaySummary(sessionID string, sum simulation.DaySummary) error
}

// Event is what the simulation runner publishes on the bus.
type Event struct {
	SessionID string
	Snapshot  model.Snapshot
	// Day is set on the tick that completed a day.
	Day *simulation.DaySummary
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordSnapshot(string, model.Snapshot) error          { return nil }
func (NopSink) RecordDaySummary(string, simulation.DaySummary) error { return nil }

// MultiSink fans records out to several sinks. Every sink is attempted; the
// errors are joined.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSnapshot forwards the snapshot to all sinks.
func (m *MultiSink) RecordSnapshot(sessionID string, snap model.Snapshot) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordSnapshot(sessionID, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordDaySummary forwards the summary to sinks that support it.
func (m *MultiSink) RecordDaySummary(sessionID string, sum simulation.DaySummary) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(DaySummaryRecorder); ok {
			if err := r.RecordDaySummary(sessionID, sum); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Registry builds sinks from configuration.
type Registry = factory.Registry[Sink]

// NewRegistry returns a registry that already knows the "nop" sink.
func NewRegistry() *Registry {
	reg := factory.NewRegistry[Sink]()
	_ = reg.Register("nop", func(map[string]any) (Sink, error) { return NopSink{}, nil })
	return reg
}

// New creates the configured sinks. No configuration yields a NopSink, one
// entry the sink itself, several a MultiSink.
func New(reg *Registry, cfgs []factory.ModuleConfig) (Sink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks, err := reg.CreateAll(cfgs)
	if err != nil {
		return nil, err
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}
