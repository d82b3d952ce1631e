package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/core/sink"
)

// Register adds the "prometheus" and "influx" sinks to reg. Prometheus
// metrics are registered on promReg.
func Register(reg *sink.Registry, promReg prometheus.Registerer) error {
	if err := reg.Register("prometheus", func(map[string]any) (sink.Sink, error) {
		return NewPromSinkWithRegistry(promReg)
	}); err != nil {
		return err
	}
	return reg.Register("influx", func(conf map[string]any) (sink.Sink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
