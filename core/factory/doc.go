// Package factory instantiates pluggable components, such as snapshot sinks,
// from configuration. A component is described by a type string and a map of
// raw settings; each registered constructor decodes its settings into a typed
// struct with Decode.
//
//	reg := factory.NewRegistry[sink.Sink]()
//	_ = reg.Register("mqtt", func(conf map[string]any) (sink.Sink, error) {
//	    var c mqtt.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return mqtt.NewPublisher(c)
//	})
//	sinks, err := reg.CreateAll(cfg.Sinks)
package factory
