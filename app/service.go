package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kilianp07/homesim/api/control"
	"github.com/kilianp07/homesim/config"
	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/core/model"
	coremon "github.com/kilianp07/homesim/core/monitoring"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/core/sink"
	"github.com/kilianp07/homesim/infra/kafka"
	"github.com/kilianp07/homesim/infra/logger"
	"github.com/kilianp07/homesim/infra/metrics"
	"github.com/kilianp07/homesim/infra/monitoring"
	"github.com/kilianp07/homesim/infra/mqtt"
	"github.com/kilianp07/homesim/infra/trace"
	"github.com/kilianp07/homesim/infra/ws"
	"github.com/kilianp07/homesim/internal/eventbus"
)

// Service wires the session manager, the ticker, the sinks and the control
// API together.
type Service struct {
	cfg     *config.Config
	mgr     *simulation.Manager
	bus     *eventbus.TypedBus[sink.Event]
	sink    *sink.MultiSink
	hub     *ws.Hub
	trace   *trace.Store
	promReg *prometheus.Registry
	api     *control.Server
	runner  *Runner
	log     logger.Logger

	mu      sync.Mutex
	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	closeLog, err := logger.Configure(cfg.Logging.Options)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	s := &Service{cfg: cfg, log: logger.New("service"), closers: []func() error{closeLog}}

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		s.log.Errorf("sentry disabled: %v", err)
	} else {
		coremon.Init(mon)
		s.closers = append(s.closers, func() error { coremon.Flush(2 * time.Second); return nil })
	}

	opts, err := SessionOptions(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	opts.Logger = logger.New("simulation")
	s.mgr = simulation.NewManager(opts)

	s.promReg = prometheus.NewRegistry()
	s.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.hub = ws.NewHub()
	if err := s.buildSinks(); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.bus = eventbus.NewTyped[sink.Event]()
	s.mgr.OnStep(s.publish)
	s.runner = NewRunner(s.mgr, cfg.Simulation.TickInterval, logger.New("runner"))

	apiOpts := control.Options{
		OnDelete:    s.forget,
		Trace:       s.trace,
		WebSocket:   ws.NewHandler(s.hub, s.mgr),
		MaxSessions: cfg.Simulation.MaxSessions,
		CORSOrigins: cfg.API.CORSOrigins,
	}
	if cfg.Metrics.PrometheusEnabled && cfg.Metrics.Address == "" {
		apiOpts.Metrics = metrics.Handler(s.promReg)
	}
	s.api = control.NewServer(s.mgr, apiOpts)

	for i := 0; i < cfg.Simulation.Sessions; i++ {
		sess, err := s.mgr.Create(nil)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("create session: %w", err)
		}
		if cfg.Simulation.AutoStart {
			sess.Start()
		}
		s.log.Infof("session %s ready", sess.ID())
	}
	return s, nil
}

// SessionOptions converts the configuration into session defaults.
// Definition and catalog errors are fatal.
func SessionOptions(cfg *config.Config) (simulation.Options, error) {
	specs, err := cfg.Devices.Specs()
	if err != nil {
		return simulation.Options{}, fmt.Errorf("devices: %w", err)
	}
	catalog, err := cfg.Scheduler.Catalog()
	if err != nil {
		return simulation.Options{}, fmt.Errorf("scheduler: %w", err)
	}
	policy := cfg.Dispatch.Policy()
	return simulation.Options{
		Seed:        cfg.Simulation.Seed,
		Devices:     specs,
		Catalog:     catalog,
		Environment: cfg.Environment.Profile,
		Policy:      &policy,
	}, nil
}

func (s *Service) buildSinks() error {
	reg := sink.NewRegistry()
	errs := []error{
		metrics.Register(reg, s.promReg),
		mqtt.Register(reg, func(p *mqtt.Publisher) { p.OnControl(s.control) }),
		kafka.Register(reg),
		trace.Register(reg, func(st *trace.Store) { s.trace = st }),
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("register sinks: %w", err)
	}

	cfgs := s.cfg.Sinks
	if s.cfg.Metrics.PrometheusEnabled && !hasSink(cfgs, "prometheus") {
		cfgs = append(cfgs, factory.ModuleConfig{Type: "prometheus"})
	}
	built, err := reg.CreateAll(cfgs)
	if err != nil {
		return fmt.Errorf("sinks: %w", err)
	}
	s.sink = sink.NewMultiSink(append(built, s.hub)...)
	s.closers = append(s.closers, s.sink.Close)
	return nil
}

func hasSink(cfgs []factory.ModuleConfig, typ string) bool {
	for _, c := range cfgs {
		if c.Type == typ {
			return true
		}
	}
	return false
}

// control applies commands received over MQTT.
func (s *Service) control(sessionID string, cmd simulation.Command) {
	if err := s.mgr.Apply(sessionID, cmd); err != nil {
		s.log.Warnf("control %s on %s: %v", cmd.Action, sessionID, err)
	}
}

// publish puts every reported step on the bus feeding the sinks.
func (s *Service) publish(id string, snap model.Snapshot, day *simulation.DaySummary) {
	s.bus.Publish(sink.Event{SessionID: id, Snapshot: snap, Day: day})
}

// forget drops the metric series of a deleted session.
func (s *Service) forget(id string) {
	for _, sk := range s.sink.Sinks {
		if f, ok := sk.(interface{ Forget(string) }); ok {
			f.Forget(id)
		}
	}
}

// Manager returns the session manager.
func (s *Service) Manager() *simulation.Manager { return s.mgr }

// Runner returns the step runner.
func (s *Service) Runner() *Runner { return s.runner }

// Sink returns the combined sink.
func (s *Service) Sink() sink.Sink { return s.sink }

// Run starts the sink forwarder, the ticker, the API and the optional
// metrics server, and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := s.bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer coremon.Recover()
		sink.Forward(ctx, events, s.sink, logger.New("sink"), coremon.CaptureSinkError)
	}()
	go func() {
		defer wg.Done()
		defer coremon.Recover()
		s.runner.Run(ctx)
	}()
	if s.cfg.Metrics.PrometheusEnabled && s.cfg.Metrics.Address != "" {
		coremon.Go(func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.Address, s.promReg); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}

	err := s.api.ListenAndServe(ctx, s.cfg.API.Address)
	cancel()
	wg.Wait()
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.bus != nil {
		s.bus.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
