package dispatch

import (
	"math"
	"testing"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func household(t *testing.T) []device.Device {
	t.Helper()
	devs, err := device.NewRegistry().BuildAll(device.DefaultSpecs())
	require.NoError(t, err)
	return devs
}

func at(hour int, price, solar float64) model.Conditions {
	return model.Conditions{
		Clock:       model.Clock{Step: hour * 4},
		Environment: model.EnvironmentSample{PricePerKWh: price, SolarKW: solar},
	}
}

func TestWaterHeaterTiers(t *testing.T) {
	p := NewPolicy()
	cases := []struct {
		name   string
		price  float64
		solar  float64
		active bool
		limit  float64
		tier   string
	}{
		{"surplus", 0.040, 4.5, true, 4.5, TierSurplus},
		{"cheap", 0.012, 0, true, 3.5, TierCheap},
		{"normal", 0.020, 0, true, 2.0, TierNormal},
		{"peak deactivates", 0.035, 3.5, false, 0, TierPeak},
		{"expensive and dark", 0.028, 0, false, 0, TierOff},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctl := p.waterHeater(model.EnvironmentSample{PricePerKWh: tc.price, SolarKW: tc.solar})
			assert.Equal(t, tc.active, ctl.Active)
			assert.Equal(t, tc.limit, ctl.PowerLimitKW)
			assert.Equal(t, tc.tier, ctl.Tier)
		})
	}
}

func TestHVACTiersAndHours(t *testing.T) {
	p := NewPolicy()
	assert.False(t, p.hvac(5, model.EnvironmentSample{PricePerKWh: 0.01}).Active)
	assert.False(t, p.hvac(23, model.EnvironmentSample{PricePerKWh: 0.01}).Active)
	assert.Equal(t, TierCheap, p.hvac(6, model.EnvironmentSample{PricePerKWh: 0.018}).Tier)
	assert.Equal(t, TierNormal, p.hvac(22, model.EnvironmentSample{PricePerKWh: 0.025}).Tier)
	assert.Equal(t, TierSurplus, p.hvac(12, model.EnvironmentSample{PricePerKWh: 0.040, SolarKW: 4}).Tier)
	peak := p.hvac(17, model.EnvironmentSample{PricePerKWh: 0.038, SolarKW: 2.5})
	assert.True(t, peak.Active)
	assert.Equal(t, 0.8, peak.PowerLimitKW)
	assert.False(t, p.hvac(17, model.EnvironmentSample{PricePerKWh: 0.038, SolarKW: 1}).Active)
}

func TestControlsScheduleEVAndOverrides(t *testing.T) {
	p := NewPolicy()
	devs := household(t)
	plan := scheduler.Plan{Windows: map[string]scheduler.Window{
		device.IDTV:           {Start: 80, End: 92},
		device.IDRefrigerator: {Start: 0, End: 96},
	}}
	prev := scheduler.Plan{Windows: map[string]scheduler.Window{device.IDLights: {Start: 90, End: 100}}}

	ctl := p.Controls(at(20, 0.042, 0), devs, Schedule{Today: &plan, Previous: &prev}, nil)
	assert.True(t, ctl[device.IDTV].Active)
	assert.True(t, ctl[device.IDRefrigerator].Active)
	assert.False(t, ctl[device.IDDishwasher].Active)
	assert.True(t, ctl[device.IDEV].Active)
	assert.Equal(t, TierConnected, ctl[device.IDEV].Tier)

	ctl = p.Controls(at(0, 0.012, 0), devs, Schedule{Today: &plan, Previous: &prev}, nil)
	assert.True(t, ctl[device.IDLights].Active, "spillover from previous day")

	ctl = p.Controls(at(12, 0.018, 5), devs, Schedule{Today: &plan}, map[string]bool{device.IDRefrigerator: false, device.IDVacuum: true})
	assert.False(t, ctl[device.IDEV].Active)
	assert.False(t, ctl[device.IDRefrigerator].Active)
	assert.True(t, ctl[device.IDVacuum].Active)
	assert.Equal(t, TierOverride, ctl[device.IDVacuum].Tier)

	ctl = p.Controls(at(12, 0.018, 5), devs, Schedule{}, nil)
	assert.False(t, ctl[device.IDTV].Active)
	assert.Len(t, ctl, len(devs))
}

func TestBatteryTrickleScenario(t *testing.T) {
	p := NewPolicy()
	b := p.StepBattery(model.BatteryState{LevelPercent: 45}, model.EnvironmentSample{PricePerKWh: 0.012}, 0.2)
	assert.Equal(t, model.BatteryCharging, b.Status)
	assert.InDelta(t, 1.5, b.PowerKW, 1e-12)
	assert.InDelta(t, 45.15, b.LevelPercent, 1e-9)
}

func TestBatteryRules(t *testing.T) {
	p := NewPolicy()

	solar := p.StepBattery(model.BatteryState{LevelPercent: 50}, model.EnvironmentSample{SolarKW: 5, PricePerKWh: 0.02}, 1)
	assert.Equal(t, 2.4, solar.PowerKW)
	assert.InDelta(t, 50.24, solar.LevelPercent, 1e-9)

	small := p.StepBattery(model.BatteryState{LevelPercent: 50}, model.EnvironmentSample{SolarKW: 1.5, PricePerKWh: 0.02}, 1)
	assert.InDelta(t, 0.5, small.PowerKW, 1e-12)

	peak := p.StepBattery(model.BatteryState{LevelPercent: 60}, model.EnvironmentSample{PricePerKWh: 0.04, SolarKW: 0.5}, 3)
	assert.Equal(t, model.BatteryDischarging, peak.Status)
	assert.Equal(t, -2.4, peak.PowerKW)
	assert.InDelta(t, 59.76, peak.LevelPercent, 1e-9)

	nothingToCover := p.StepBattery(model.BatteryState{LevelPercent: 60}, model.EnvironmentSample{PricePerKWh: 0.04, SolarKW: 1}, 1)
	assert.Equal(t, model.BatteryIdle, nothingToCover.Status)
	assert.Zero(t, nothingToCover.PowerKW)

	full := p.StepBattery(model.BatteryState{LevelPercent: 95}, model.EnvironmentSample{SolarKW: 5, PricePerKWh: 0.02}, 1)
	assert.Equal(t, model.BatteryIdle, full.Status)

	nearFloor := p.StepBattery(model.BatteryState{LevelPercent: 20}, model.EnvironmentSample{PricePerKWh: 0.04}, 3)
	assert.Equal(t, model.BatteryIdle, nearFloor.Status)
}

func TestBatteryLevelAlwaysClamped(t *testing.T) {
	p := NewPolicy()
	p.Battery.LossFactor = 50
	for _, level := range []float64{-100, 0, 10, 10.01, 50, 99.9, 100, 1e9} {
		for _, env := range []model.EnvironmentSample{
			{SolarKW: 6, PricePerKWh: 0},
			{SolarKW: 0, PricePerKWh: 0.5},
			{SolarKW: 0, PricePerKWh: 0.001},
		} {
			b := p.StepBattery(model.BatteryState{LevelPercent: level}, env, 3)
			if b.LevelPercent < model.BatteryMinLevel || b.LevelPercent > model.BatteryMaxLevel || math.IsNaN(b.LevelPercent) {
				t.Fatalf("level %.2f env %+v -> %.2f", level, env, b.LevelPercent)
			}
		}
	}
}

func TestGridImport(t *testing.T) {
	assert.Equal(t, 0.0, GridImport(1, 3, 0))
	assert.InDelta(t, 3.7, GridImport(2.2, 0, 1.5), 1e-12)
	assert.InDelta(t, 0.6, GridImport(3, 0, -2.4), 1e-12)
}
