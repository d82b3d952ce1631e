package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/dispatch"
	"github.com/kilianp07/homesim/core/environment"
	"github.com/kilianp07/homesim/core/logger"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/scheduler"
)

// Options configure a session. Zero values select the built-in household.
type Options struct {
	Seed        int64
	Devices     []device.Spec
	Catalog     scheduler.Catalog
	Environment environment.Provider
	Policy      *dispatch.Policy
	Logger      logger.Logger
	// OnDayEnd receives the summary of each completed day.
	OnDayEnd func(DaySummary)
}

// Session is one independent simulated household with a start/stop
// lifecycle. Its methods are safe for concurrent use.
type Session struct {
	id       string
	seed     int64
	engine   Engine
	env      environment.Provider
	catalog  scheduler.Catalog
	log      logger.Logger
	onDayEnd func(DaySummary)

	mu      sync.Mutex
	rng     *rand.Rand
	sched   *scheduler.Scheduler
	state   WorldState
	running bool
	last    model.Snapshot
	frozen  model.Snapshot
	totals  Totals
	day     dayLog
	lastDay *DaySummary
}

// NewSession builds the devices described by opts. Invalid definitions are
// the only fatal errors of a session.
func NewSession(id string, opts Options) (*Session, error) {
	specs := opts.Devices
	if specs == nil {
		specs = device.DefaultSpecs()
	}
	devices, err := device.NewRegistry().BuildAll(specs)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	policy := dispatch.NewPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	s := &Session{
		id:       id,
		seed:     opts.Seed,
		engine:   NewEngine(devices, policy),
		env:      opts.Environment,
		catalog:  opts.Catalog,
		log:      opts.Logger,
		onDayEnd: opts.OnDayEnd,
	}
	if s.env == nil {
		s.env = environment.DefaultProfile()
	}
	if s.catalog == nil {
		s.catalog = scheduler.DefaultCatalog()
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	s.checkCatalog(devices)
	s.reset()
	return s, nil
}

func (s *Session) checkCatalog(devices []device.Device) {
	planned := make(map[string]bool, len(s.catalog))
	for _, id := range s.catalog.IDs() {
		planned[id] = true
	}
	for _, d := range devices {
		if d.Spec.Kind == model.KindAppliance && !planned[d.Spec.ID] {
			s.log.Warnf("appliance %s has no schedule and only runs when overridden", d.Spec.ID)
		}
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// reset must be called with mu held or before the session is shared.
func (s *Session) reset() {
	s.rng = rand.New(rand.NewSource(s.seed))
	s.sched = scheduler.New(s.catalog, s.rng, s.log)
	s.state = InitialState(s.engine.Devices)
	s.running = false
	s.totals = Totals{}
	s.day.reset()
	s.lastDay = nil
	s.frozen = s.engine.Snapshot(s.state, model.EnvironmentSample{})
	s.last = s.frozen.Clone()
}

// Start moves a stopped session to running and rewinds the step cursor.
// Starting a running session has no effect.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.last.Running = true
	s.state.Clock.Step = 0
	s.state.Plan, s.state.PrevPlan = nil, nil
	s.day.reset()
	s.log.Infow("simulation started", map[string]any{"session": s.id})
}

// Stop pauses a running session and keeps its state.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.last.Running = false
	s.log.Infow("simulation stopped", map[string]any{"session": s.id, "step": s.state.Clock.Step})
}

// Reset stops the session and restores every default, including the random
// source, so a replay after Reset is identical.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.log.Infow("simulation reset", map[string]any{"session": s.id})
}

// Running reports the lifecycle state.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Current returns the latest snapshot.
func (s *Session) Current() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}

// Totals returns the running totals.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// LastDay returns the summary of the most recently completed day.
func (s *Session) LastDay() (DaySummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastDay == nil {
		return DaySummary{}, false
	}
	return *s.lastDay, true
}

// Plan returns the appliance plan of the current day, if drawn.
func (s *Session) Plan() (scheduler.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Plan == nil {
		return scheduler.Plan{}, false
	}
	return *s.state.Plan, true
}

// SetOverride forces a device on or off until cleared or reset.
func (s *Session) SetOverride(id string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceIndex(id) < 0 {
		return fmt.Errorf("%w: %s", device.ErrUnknownDevice, id)
	}
	s.state.Overrides[id] = on
	return nil
}

// ClearOverride hands a device back to dispatch.
func (s *Session) ClearOverride(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceIndex(id) < 0 {
		return fmt.Errorf("%w: %s", device.ErrUnknownDevice, id)
	}
	delete(s.state.Overrides, id)
	return nil
}

// Overrides returns a copy of the active overrides.
func (s *Session) Overrides() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.state.Overrides))
	for k, v := range s.state.Overrides {
		out[k] = v
	}
	return out
}

func (s *Session) deviceIndex(id string) int {
	for i, d := range s.engine.Devices {
		if d.Spec.ID == id {
			return i
		}
	}
	return -1
}

// Tick advances a running session by one step and returns its snapshot. A
// stopped session returns the frozen default snapshot. When the environment
// has no sample for the step, the previous snapshot is returned with a
// warning and the clock does not move.
func (s *Session) Tick() model.Snapshot {
	snap, _ := s.Step()
	return snap
}

// Step is Tick that also returns the summary of the day the step closed, if
// any. OnDayEnd runs after the session lock is released.
func (s *Session) Step() (model.Snapshot, *DaySummary) {
	s.mu.Lock()
	snap, closed := s.step()
	onDayEnd := s.onDayEnd
	s.mu.Unlock()
	if closed != nil && onDayEnd != nil {
		onDayEnd(*closed)
	}
	return snap, closed
}

func (s *Session) step() (model.Snapshot, *DaySummary) {
	if !s.running {
		return s.frozen.Clone(), nil
	}

	nextClock := model.Clock{Step: s.state.Clock.Step + 1}
	env, err := s.env.Sample(nextClock.Step)
	if err != nil {
		held := s.last.Clone()
		held.Running = true
		msg := fmt.Sprintf("step %d: %v", nextClock.Step, err)
		if !errors.Is(err, environment.ErrSampleMissing) {
			msg = fmt.Sprintf("step %d: environment: %v", nextClock.Step, err)
		}
		held.Warnings = append(held.Warnings, msg)
		s.log.Warnf("session %s: %s", s.id, msg)
		return held, nil
	}

	var warnings []string
	if s.state.Plan == nil || s.state.Plan.Day != nextClock.Day() {
		warnings = append(warnings, s.regenerate(nextClock.Day())...)
	}
	s.arrive(nextClock)

	next, snap := s.engine.Advance(s.state, env)
	s.state = next
	snap.Warnings = append(warnings, snap.Warnings...)

	var closed *DaySummary
	if !s.day.empty() && s.day.day != snap.Day {
		sum := s.day.summary()
		s.lastDay = &sum
		closed = &sum
		s.day.reset()
		s.log.Infow("day completed", map[string]any{"session": s.id, "day": sum.Day, "cost": sum.Cost, "import_kwh": sum.ImportKWh})
	}
	s.day.add(snap)
	s.totals.Add(snap)
	s.last = snap.Clone()
	return snap, closed
}

func (s *Session) regenerate(day int) []string {
	plan := s.sched.Generate(day)
	prev := s.state.Plan
	if prev != nil && prev.Day != day-1 {
		prev = nil
	}
	s.state.PrevPlan = prev
	s.state.Plan = &plan
	return plan.Warnings
}

// arrive redraws the EV SoC when the car plugs in at clock.
func (s *Session) arrive(clock model.Clock) {
	for i, d := range s.engine.Devices {
		ev, ok := d.Model.(device.EV)
		if !ok {
			continue
		}
		st := &s.state.Devices[i]
		if !st.Connected && ev.Connected(clock) {
			st.Level = ev.ArrivalSoC(s.rng.Float64())
			s.log.Debugw("ev arrived", map[string]any{"session": s.id, "device": d.Spec.ID, "soc": st.Level})
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Infow(string, map[string]any)  {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
