package mqtt

import (
	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/core/sink"
)

// Register adds the "mqtt" sink. Every created publisher is passed to
// onCreate so the caller can attach a control handler.
func Register(reg *sink.Registry, onCreate func(*Publisher)) error {
	return reg.Register("mqtt", func(conf map[string]any) (sink.Sink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		p, err := NewPublisher(c)
		if err != nil {
			return nil, err
		}
		if onCreate != nil {
			onCreate(p)
		}
		return p, nil
	})
}
