package simulation

import (
	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/scheduler"
)

// Default initial values restored by Reset.
const (
	DefaultIndoorC      = 21.0
	DefaultTankC        = 58.0
	DefaultEVSoC        = 0.5
	DefaultBatteryLevel = 45.0
)

// WorldState is everything one session mutates. Devices is index-aligned with
// the engine's device list.
type WorldState struct {
	Clock     model.Clock
	Devices   []model.DeviceState
	Battery   model.BatteryState
	Plan      *scheduler.Plan
	PrevPlan  *scheduler.Plan
	Overrides map[string]bool
}

// Clone copies the slices and maps of s. Plans are immutable once drawn and
// stay shared.
func (s WorldState) Clone() WorldState {
	out := s
	out.Devices = make([]model.DeviceState, len(s.Devices))
	copy(out.Devices, s.Devices)
	out.Overrides = make(map[string]bool, len(s.Overrides))
	for k, v := range s.Overrides {
		out.Overrides[k] = v
	}
	return out
}

// InitialState returns the documented starting point for devices.
func InitialState(devices []device.Device) WorldState {
	st := WorldState{
		Devices:   make([]model.DeviceState, len(devices)),
		Battery:   model.BatteryState{LevelPercent: DefaultBatteryLevel, Status: model.BatteryIdle},
		Overrides: map[string]bool{},
	}
	clock := model.Clock{}
	for i, d := range devices {
		ds := model.DeviceState{ID: d.Spec.ID, Kind: d.Spec.Kind}
		switch d.Spec.Kind {
		case model.KindHVAC:
			ds.Level = DefaultIndoorC
		case model.KindWaterHeater:
			ds.Level = DefaultTankC
		case model.KindEV:
			ds.Level = DefaultEVSoC
			if ev, ok := d.Model.(device.EV); ok {
				ds.Connected = ev.Connected(clock)
				if ds.Connected {
					ds.HoursToDeparture = ev.HoursToDeparture(clock)
				}
			}
		case model.KindAppliance:
			if d.Spec.ID == device.IDRefrigerator {
				ds.Active = true
				ds.PowerKW = d.Spec.RatedPower
			}
		}
		st.Devices[i] = ds
	}
	return st
}
