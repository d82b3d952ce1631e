package dispatch

import (
	"math"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/scheduler"
)

// Tier names reported in model.Control.
const (
	TierOff       = "off"
	TierSurplus   = "surplus"
	TierCheap     = "cheap"
	TierPeak      = "peak"
	TierNormal    = "normal"
	TierSchedule  = "schedule"
	TierConnected = "connected"
	TierOverride  = "override"
)

// Schedule carries the appliance plans visible to dispatch. Previous is used
// for runs spilling over midnight and may be nil.
type Schedule struct {
	Today    *scheduler.Plan
	Previous *scheduler.Plan
}

// Active reports whether the plan runs id at step-of-day s.
func (s Schedule) Active(id string, stepOfDay int) bool {
	if s.Today == nil {
		return false
	}
	return s.Today.Active(id, stepOfDay, s.Previous)
}

// Policy turns prices, solar and schedules into per-device controls and
// drives the battery.
type Policy struct {
	Thresholds Thresholds
	Battery    BatteryRule
}

// NewPolicy returns a policy with the default tables.
func NewPolicy() Policy {
	return Policy{Thresholds: DefaultThresholds(), Battery: DefaultBatteryRule()}
}

type pluggable interface {
	Connected(model.Clock) bool
}

// Controls decides the control of every device for the step described by cond.
// overrides force a device on or off regardless of the rules.
func (p Policy) Controls(cond model.Conditions, devices []device.Device, sched Schedule, overrides map[string]bool) map[string]model.Control {
	out := make(map[string]model.Control, len(devices))
	for _, d := range devices {
		var ctl model.Control
		switch d.Spec.Kind {
		case model.KindWaterHeater:
			ctl = p.waterHeater(cond.Environment)
		case model.KindHVAC:
			ctl = p.hvac(cond.Clock.Hour(), cond.Environment)
		case model.KindEV:
			ctl = model.Control{Tier: TierOff}
			if pl, ok := d.Model.(pluggable); ok && pl.Connected(cond.Clock) {
				ctl = model.Control{Active: true, Tier: TierConnected}
			}
		default:
			ctl = model.Control{Tier: TierOff}
			if sched.Active(d.Spec.ID, cond.Clock.StepOfDay()) {
				ctl = model.Control{Active: true, Tier: TierSchedule}
			}
		}
		if on, ok := overrides[d.Spec.ID]; ok {
			ctl.Active = on
			ctl.Tier = TierOverride
		}
		out[d.Spec.ID] = ctl
	}
	return out
}

func (p Policy) waterHeater(env model.EnvironmentSample) model.Control {
	r := p.Thresholds.WaterHeater
	if !(env.PricePerKWh < r.EnablePrice || env.SolarKW > r.EnableSolar) {
		return model.Control{Tier: TierOff}
	}
	switch {
	case env.SolarKW > r.SurplusSolar:
		return model.Control{Active: true, PowerLimitKW: r.SurplusKW, Tier: TierSurplus}
	case env.PricePerKWh < r.CheapPrice:
		return model.Control{Active: true, PowerLimitKW: r.CheapKW, Tier: TierCheap}
	case env.PricePerKWh > r.PeakPrice:
		return model.Control{Tier: TierPeak}
	default:
		return model.Control{Active: true, PowerLimitKW: r.NormalKW, Tier: TierNormal}
	}
}

func (p Policy) hvac(hour int, env model.EnvironmentSample) model.Control {
	r := p.Thresholds.HVAC
	if hour < r.FromHour || hour > r.ToHour {
		return model.Control{Tier: TierOff}
	}
	if !(env.PricePerKWh < r.EnablePrice || env.SolarKW > r.EnableSolar) {
		return model.Control{Tier: TierOff}
	}
	switch {
	case env.SolarKW > r.SurplusSolar:
		return model.Control{Active: true, PowerLimitKW: r.SurplusKW, Tier: TierSurplus}
	case env.PricePerKWh < r.CheapPrice:
		return model.Control{Active: true, PowerLimitKW: r.CheapKW, Tier: TierCheap}
	case env.PricePerKWh > r.PeakPrice:
		return model.Control{Active: true, PowerLimitKW: r.PeakKW, Tier: TierPeak}
	default:
		return model.Control{Active: true, PowerLimitKW: r.NormalKW, Tier: TierNormal}
	}
}

// StepBattery applies the battery rules in priority order: store solar surplus,
// discharge at peak price, trickle charge at off-peak, otherwise idle.
func (p Policy) StepBattery(b model.BatteryState, env model.EnvironmentSample, demandKW float64) model.BatteryState {
	r := p.Battery
	level := model.ClampLevel(b.LevelPercent)
	solar := env.SolarKW
	next := model.BatteryState{LevelPercent: level, Status: model.BatteryIdle}
	switch {
	case solar > demandKW && level < r.SolarCeiling:
		next.PowerKW = math.Min(r.MaxFlowKW, solar-demandKW)
		next.Status = model.BatteryCharging
		next.LevelPercent = level + next.PowerKW*r.LossFactor
	case env.PricePerKWh > r.HighPrice && level > r.DischargeFloor:
		flow := math.Min(r.MaxFlowKW, math.Max(0, demandKW-solar))
		if flow > 0 {
			next.PowerKW = -flow
			next.Status = model.BatteryDischarging
			next.LevelPercent = level - flow*r.LossFactor
		}
	case env.PricePerKWh < r.LowPrice && level < r.TrickleCeiling:
		next.PowerKW = r.TrickleKW
		next.Status = model.BatteryCharging
		next.LevelPercent = level + next.PowerKW*r.LossFactor
	}
	next.LevelPercent = model.ClampLevel(next.LevelPercent)
	return next
}

// GridImport is the power drawn from the grid, never negative.
func GridImport(demandKW, solarKW, batteryKW float64) float64 {
	return math.Max(0, demandKW-solarKW+batteryKW)
}
