package simulation

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/dispatch"
	"github.com/kilianp07/homesim/core/environment"
	"github.com/kilianp07/homesim/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := NewSession("test", opts)
	require.NoError(t, err)
	return s
}

func constantEnv(n int, env model.EnvironmentSample) environment.Series {
	samples := make([]model.EnvironmentSample, n)
	for i := range samples {
		samples[i] = env
	}
	return environment.Series{Samples: samples}
}

func TestBatteryTrickleOnFirstTick(t *testing.T) {
	s := newSession(t, Options{Seed: 1})
	s.Start()
	snap := s.Tick()
	require.Equal(t, 1, snap.Step)
	assert.Equal(t, "00:15", snap.TimeOfDay)
	assert.Equal(t, 0.012, snap.Environment.PricePerKWh)
	assert.Equal(t, model.BatteryCharging, snap.Battery.Status)
	assert.InDelta(t, 1.5, snap.Battery.PowerKW, 1e-12)
	assert.InDelta(t, 45+1.5*0.1, snap.Battery.LevelPercent, 1e-9)
	assert.InDelta(t, snap.HouseDemand+1.5, snap.GridImport, 1e-9)
}

func TestEVHighPriceScenario(t *testing.T) {
	policy := dispatch.NewPolicy()
	devs, err := device.NewRegistry().BuildAll([]device.Spec{{ID: device.IDEV, Kind: model.KindEV}})
	require.NoError(t, err)
	e := NewEngine(devs, policy)
	st := InitialState(devs)
	st.Clock.Step = 20*4 - 1
	st.Devices[0].Level = 0.30
	st.Devices[0].Connected = true

	next, snap := e.Advance(st, model.EnvironmentSample{PricePerKWh: 0.05})
	assert.Equal(t, "20:00", snap.TimeOfDay)
	want := (0.85 - 0.30) * 60 / 11 / 0.9
	assert.InDelta(t, want, snap.Devices[0].PowerKW, 1e-9)
	assert.InDelta(t, want, snap.HouseDemand, 1e-9)
	assert.Equal(t, 0.30, st.Devices[0].Level, "input state must not change")
	assert.Greater(t, next.Devices[0].Level, 0.30)
}

func TestAdvanceIsPure(t *testing.T) {
	s := newSession(t, Options{Seed: 3})
	s.Start()
	for i := 0; i < 40; i++ {
		s.Tick()
	}
	s.mu.Lock()
	st := s.state.Clone()
	engine := s.engine
	s.mu.Unlock()
	env := model.EnvironmentSample{SolarKW: 2, PricePerKWh: 0.02, OutdoorTempC: 25}
	n1, s1 := engine.Advance(st, env)
	n2, s2 := engine.Advance(st, env)
	assert.Equal(t, s1, s2)
	assert.Equal(t, n1.Devices, n2.Devices)
	s1.Devices[0].PowerKW = 99
	assert.NotEqual(t, 99.0, n1.Devices[0].PowerKW)
}

func TestStoppedTickReturnsFrozenDefault(t *testing.T) {
	s := newSession(t, Options{})
	a := s.Tick()
	b := s.Tick()
	assert.Equal(t, a, b)
	assert.Equal(t, 0, a.Step)
	assert.Equal(t, "00:00", a.TimeOfDay)
	assert.False(t, a.Running)
	fridge, ok := a.Device(device.IDRefrigerator)
	require.True(t, ok)
	assert.True(t, fridge.Active)
	assert.InDelta(t, 0.2, fridge.PowerKW, 1e-12)
	assert.InDelta(t, 0.2, a.HouseDemand, 1e-12)
	assert.InDelta(t, 0.2, a.GridImport, 1e-12)
	assert.Equal(t, DefaultBatteryLevel, a.Battery.LevelPercent)
}

func TestStopPreservesAndStartRewinds(t *testing.T) {
	s := newSession(t, Options{Seed: 5})
	s.Start()
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	s.Start()
	assert.Equal(t, 10, s.Current().Step, "start while running is a no-op")
	s.Stop()
	stopped := s.Current()
	assert.False(t, stopped.Running)
	assert.Equal(t, 10, stopped.Step)
	assert.Equal(t, 10, s.Totals().Steps)

	s.Start()
	snap := s.Tick()
	assert.Equal(t, 1, snap.Step)
	assert.Equal(t, stopped.Battery.LevelPercent+snap.Battery.PowerKW*0.1, snap.Battery.LevelPercent)
}

func TestResetRestoresDefaultsExactly(t *testing.T) {
	s := newSession(t, Options{Seed: 11})
	initial := s.Current()
	s.Start()
	first := make([]model.Snapshot, 0, 250)
	for i := 0; i < 250; i++ {
		first = append(first, s.Tick())
	}
	require.NoError(t, s.SetOverride(device.IDTV, true))
	s.Reset()

	assert.Equal(t, initial, s.Current())
	assert.Equal(t, Totals{}, s.Totals())
	assert.Empty(t, s.Overrides())
	assert.False(t, s.Running())
	_, ok := s.LastDay()
	assert.False(t, ok)

	s.mu.Lock()
	for _, d := range s.state.Devices {
		switch d.Kind {
		case model.KindHVAC:
			assert.Equal(t, DefaultIndoorC, d.Level)
		case model.KindWaterHeater:
			assert.Equal(t, DefaultTankC, d.Level)
		case model.KindEV:
			assert.Equal(t, DefaultEVSoC, d.Level)
		}
	}
	assert.Equal(t, 0, s.state.Clock.Step)
	s.mu.Unlock()

	s.Start()
	for i := 0; i < 250; i++ {
		require.Equal(t, first[i], s.Tick(), "replay diverged at tick %d", i)
	}
}

func TestDayRolloverSummary(t *testing.T) {
	var got []DaySummary
	s := newSession(t, Options{Seed: 2, OnDayEnd: func(d DaySummary) { got = append(got, d) }})
	s.Start()
	var imports []float64
	for i := 0; i < model.StepsPerDay+1; i++ {
		snap := s.Tick()
		if snap.Day == 1 {
			imports = append(imports, snap.GridImport)
		}
	}
	require.Len(t, got, 1)
	sum := got[0]
	assert.Equal(t, 1, sum.Day)
	assert.Equal(t, len(imports), sum.Steps)
	peak := 0.0
	total := 0.0
	for _, v := range imports {
		peak = math.Max(peak, v)
		total += v
	}
	assert.InDelta(t, peak, sum.PeakImportKW, 1e-9)
	assert.InDelta(t, total*model.StepHours, sum.ImportKWh, 1e-9)
	assert.Greater(t, sum.MeanPrice, 0.0)
	last, ok := s.LastDay()
	require.True(t, ok)
	assert.Equal(t, sum, last)

	plan, ok := s.Plan()
	require.True(t, ok)
	assert.Equal(t, 2, plan.Day)
}

func TestMissingSampleHoldsSnapshot(t *testing.T) {
	s := newSession(t, Options{Environment: constantEnv(4, model.EnvironmentSample{PricePerKWh: 0.02})})
	s.Start()
	var last model.Snapshot
	for i := 0; i < 3; i++ {
		last = s.Tick()
	}
	held := s.Tick()
	assert.Equal(t, last.Step, held.Step)
	require.NotEmpty(t, held.Warnings)
	assert.Contains(t, held.Warnings[len(held.Warnings)-1], "environment sample missing")
	assert.Equal(t, 3, s.Totals().Steps)
}

func TestOverrides(t *testing.T) {
	s := newSession(t, Options{Environment: constantEnv(50, model.EnvironmentSample{PricePerKWh: 0.02})})
	require.ErrorIs(t, s.SetOverride("jacuzzi", true), device.ErrUnknownDevice)
	require.NoError(t, s.SetOverride(device.IDRefrigerator, false))
	require.NoError(t, s.SetOverride(device.IDVacuum, true))
	s.Start()
	snap := s.Tick()
	fridge, _ := snap.Device(device.IDRefrigerator)
	vacuum, _ := snap.Device(device.IDVacuum)
	assert.False(t, fridge.Active)
	assert.True(t, vacuum.Active)
	assert.Equal(t, 1.2, vacuum.PowerKW)

	require.NoError(t, s.ClearOverride(device.IDRefrigerator))
	snap = s.Tick()
	fridge, _ = snap.Device(device.IDRefrigerator)
	assert.True(t, fridge.Active)
}

func TestEVArrivalDrawsSoC(t *testing.T) {
	s := newSession(t, Options{Seed: 8})
	s.Start()
	var ev model.DeviceSnapshot
	for i := 0; i < 18*4; i++ {
		snap := s.Tick()
		ev, _ = snap.Device(device.IDEV)
	}
	assert.Equal(t, "18:00", s.Current().TimeOfDay)
	assert.True(t, ev.Active)
	// Arrival SoC is drawn in [0.30, 0.40] before charging the first step.
	assert.GreaterOrEqual(t, ev.Level, 0.30)
	assert.Less(t, ev.Level, 0.40+ev.PowerKW*0.9*0.25/60+1e-9)
}

func TestInvalidDefinitionIsFatal(t *testing.T) {
	_, err := NewSession("bad", Options{Devices: []device.Spec{{ID: "x", Kind: model.KindAppliance}}})
	assert.ErrorIs(t, err, device.ErrInvalidDefinition)
}

func TestManager(t *testing.T) {
	m := NewManager(Options{})
	seed := int64(4)
	a, err := m.Create(&seed)
	require.NoError(t, err)
	b, err := m.Create(nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, m.List(), 2)

	a.Start()
	a.Tick()
	assert.Equal(t, 0, b.Current().Step, "sessions are independent")
	require.Len(t, m.Running(), 1)

	got, err := m.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)
	require.NoError(t, m.Delete(a.ID()))
	_, err = m.Get(a.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Error(t, m.Add(b))
}

func TestConcurrentAccess(t *testing.T) {
	s := newSession(t, Options{})
	s.Start()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Tick()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Current()
				_ = s.SetOverride(device.IDTV, j%2 == 0)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, s.Current().Step)
}

func TestSessionApplyCommands(t *testing.T) {
	s := newSession(t, Options{Seed: 3})
	if err := s.Apply(Command{Action: ActionStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Running() {
		t.Fatal("expected running")
	}
	if err := s.Apply(Command{Action: ActionStep}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := s.Current().TimeOfDay; got != "00:15" {
		t.Fatalf("expected 00:15 after one step, got %s", got)
	}
	if err := s.Apply(Command{Action: ActionOverride, Device: device.IDTV, Active: true}); err != nil {
		t.Fatalf("override: %v", err)
	}
	if !s.Overrides()[device.IDTV] {
		t.Fatal("override not applied")
	}
	if err := s.Apply(Command{Action: ActionClear, Device: device.IDTV}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Apply(Command{Action: ActionOverride, Device: "jacuzzi"}); !errors.Is(err, device.ErrUnknownDevice) {
		t.Fatalf("expected unknown device, got %v", err)
	}
	if err := s.Apply(Command{Action: ActionClear}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected invalid command, got %v", err)
	}
	if err := s.Apply(Command{Action: "explode"}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected invalid command, got %v", err)
	}
	if err := s.Apply(Command{Action: ActionStop}); err != nil || s.Running() {
		t.Fatalf("stop: %v", err)
	}
}

func TestSessionStepReportsClosedDay(t *testing.T) {
	s := newSession(t, Options{Seed: 4})
	s.Start()
	var closed *DaySummary
	for i := 0; i < model.StepsPerDay && closed == nil; i++ {
		_, closed = s.Step()
	}
	if closed == nil {
		t.Fatal("expected a closed day within one day of steps")
	}
	if closed.Day != 1 || closed.Steps != model.StepsPerDay-1 {
		t.Fatalf("unexpected summary %+v", closed)
	}
}

func TestManagerStepsReachObserver(t *testing.T) {
	m := NewManager(Options{Seed: 6})
	s, err := m.Create(nil)
	require.NoError(t, err)
	var seen []int
	m.OnStep(func(id string, snap model.Snapshot, _ *DaySummary) {
		assert.Equal(t, s.ID(), id)
		seen = append(seen, snap.Step)
	})

	require.NoError(t, m.Apply(s.ID(), Command{Action: ActionStep}))
	assert.Empty(t, seen, "stopped sessions are not reported")

	require.NoError(t, m.Apply(s.ID(), Command{Action: ActionStart}))
	require.NoError(t, m.Apply(s.ID(), Command{Action: ActionStep}))
	snap, err := m.Step(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Step)
	m.Advance(s)
	assert.Equal(t, []int{1, 2, 3}, seen)

	_, err = m.Step("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Apply(s.ID(), Command{Action: "explode"}), ErrInvalidCommand)
}

func TestOnDayEndMayReadSession(t *testing.T) {
	var s *Session
	var steps int
	var current model.Snapshot
	s = newSession(t, Options{Seed: 8, OnDayEnd: func(DaySummary) {
		steps = s.Totals().Steps
		current = s.Current()
	}})
	s.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < model.StepsPerDay; i++ {
			s.Tick()
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("day rollover blocked on the session lock")
	}
	assert.Equal(t, model.StepsPerDay, steps)
	assert.Equal(t, model.StepsPerDay, current.Step)
	assert.Equal(t, "00:00", current.TimeOfDay)
}

func TestRefrigeratorOffAtLastQuarter(t *testing.T) {
	s := newSession(t, Options{Seed: 9})
	s.Start()
	var snap model.Snapshot
	for i := 0; i < model.StepsPerDay-1; i++ {
		snap = s.Tick()
	}
	require.Equal(t, "23:45", snap.TimeOfDay)
	fridge, ok := snap.Device(device.IDRefrigerator)
	require.True(t, ok)
	assert.False(t, fridge.Active)

	snap = s.Tick()
	require.Equal(t, "00:00", snap.TimeOfDay)
	fridge, _ = snap.Device(device.IDRefrigerator)
	assert.True(t, fridge.Active)
	assert.InDelta(t, 0.2, fridge.PowerKW, 1e-12)
}
