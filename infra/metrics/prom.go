package metrics

import (
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records the latest household state in Prometheus metrics.
type PromSink struct {
	ticks        *prometheus.CounterVec
	batteryLevel *prometheus.GaugeVec
	batteryPower *prometheus.GaugeVec
	gridImport   *prometheus.GaugeVec
	demand       *prometheus.GaugeVec
	solar        *prometheus.GaugeVec
	price        *prometheus.GaugeVec
	devicePower  *prometheus.GaugeVec
	dayCost      *prometheus.GaugeVec
	dayImport    *prometheus.GaugeVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics that
// are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.ticks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "homesim_ticks_total",
		Help: "Number of simulation steps published",
	}, []string{"session"})); err != nil {
		return nil, err
	}
	gauges := []struct {
		dst **prometheus.GaugeVec
		vec *prometheus.GaugeVec
	}{
		{&s.batteryLevel, gauge("homesim_battery_level_percent", "Home battery state of charge", "session")},
		{&s.batteryPower, gauge("homesim_battery_power_kw", "Battery flow, positive when charging", "session")},
		{&s.gridImport, gauge("homesim_grid_import_kw", "Power drawn from the grid", "session")},
		{&s.demand, gauge("homesim_house_demand_kw", "Total device demand", "session")},
		{&s.solar, gauge("homesim_solar_kw", "Solar production", "session")},
		{&s.price, gauge("homesim_price_per_kwh", "Current electricity price", "session")},
		{&s.devicePower, gauge("homesim_device_power_kw", "Electrical draw per device", "session", "device", "kind")},
		{&s.dayCost, gauge("homesim_day_cost", "Grid cost of the last completed day", "session")},
		{&s.dayImport, gauge("homesim_day_import_kwh", "Grid energy of the last completed day", "session")},
	}
	for _, g := range gauges {
		v, err := register(reg, g.vec)
		if err != nil {
			return nil, err
		}
		*g.dst = v
	}
	return s, nil
}

// RecordSnapshot updates the gauges of the session.
func (s *PromSink) RecordSnapshot(sessionID string, snap model.Snapshot) error {
	s.ticks.WithLabelValues(sessionID).Inc()
	s.batteryLevel.WithLabelValues(sessionID).Set(snap.Battery.LevelPercent)
	s.batteryPower.WithLabelValues(sessionID).Set(snap.Battery.PowerKW)
	s.gridImport.WithLabelValues(sessionID).Set(snap.GridImport)
	s.demand.WithLabelValues(sessionID).Set(snap.HouseDemand)
	s.solar.WithLabelValues(sessionID).Set(snap.Environment.SolarKW)
	s.price.WithLabelValues(sessionID).Set(snap.Environment.PricePerKWh)
	for _, d := range snap.Devices {
		s.devicePower.WithLabelValues(sessionID, d.ID, d.Kind).Set(d.PowerKW)
	}
	return nil
}

// RecordDaySummary publishes the totals of a completed day.
func (s *PromSink) RecordDaySummary(sessionID string, sum simulation.DaySummary) error {
	s.dayCost.WithLabelValues(sessionID).Set(sum.Cost)
	s.dayImport.WithLabelValues(sessionID).Set(sum.ImportKWh)
	return nil
}

// Forget drops every series of a deleted session.
func (s *PromSink) Forget(sessionID string) {
	labels := prometheus.Labels{"session": sessionID}
	for _, v := range []*prometheus.GaugeVec{s.batteryLevel, s.batteryPower, s.gridImport, s.demand, s.solar, s.price, s.devicePower, s.dayCost, s.dayImport} {
		v.DeletePartialMatch(labels)
	}
	s.ticks.DeletePartialMatch(labels)
}
