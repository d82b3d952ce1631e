package simulation

import (
	"fmt"
	"math"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/dispatch"
	"github.com/kilianp07/homesim/core/model"
)

// Engine runs one step of the household. It holds no mutable state.
type Engine struct {
	Devices []device.Device
	Policy  dispatch.Policy
}

// NewEngine returns an engine over devices using policy.
func NewEngine(devices []device.Device, policy dispatch.Policy) Engine {
	return Engine{Devices: devices, Policy: policy}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Advance moves state forward by one step under env and returns the new state
// together with its snapshot. The input state is not modified.
func (e Engine) Advance(state WorldState, env model.EnvironmentSample) (WorldState, model.Snapshot) {
	next := state.Clone()
	next.Clock.Step++
	cond := model.Conditions{Clock: next.Clock, Environment: env}
	controls := e.Policy.Controls(cond, e.Devices, dispatch.Schedule{Today: next.Plan, Previous: next.PrevPlan}, next.Overrides)

	var warnings []string
	demand := 0.0
	for i, d := range e.Devices {
		if i >= len(next.Devices) {
			break
		}
		prev := next.Devices[i]
		st, p := d.Model.Step(prev, cond, controls[d.Spec.ID])
		if !finite(st.Level) || !finite(p) || p < 0 {
			warnings = append(warnings, fmt.Sprintf("%s: discarded invalid step result", d.Spec.ID))
			st, p = prev, 0
			st.PowerKW = 0
		}
		next.Devices[i] = st
		demand += p
	}
	next.Battery = e.Policy.StepBattery(next.Battery, env, demand)
	grid := dispatch.GridImport(demand, env.SolarKW, next.Battery.PowerKW)

	snap := e.project(next, env, demand, grid)
	snap.Running = true
	snap.Warnings = warnings
	return next, snap
}

func (e Engine) project(st WorldState, env model.EnvironmentSample, demand, grid float64) model.Snapshot {
	snap := model.Snapshot{
		Step:        st.Clock.Step,
		Day:         st.Clock.Day(),
		TimeOfDay:   st.Clock.TimeOfDay(),
		Environment: env,
		Devices:     make([]model.DeviceSnapshot, len(st.Devices)),
		Battery:     st.Battery,
		HouseDemand: demand,
		GridImport:  grid,
	}
	for i, d := range st.Devices {
		ds := model.DeviceSnapshot{ID: d.ID, Kind: d.Kind.String(), Active: d.Active, PowerKW: d.PowerKW}
		if d.Kind != model.KindAppliance {
			ds.Level = d.Level
		}
		snap.Devices[i] = ds
	}
	return snap
}

// Snapshot projects state without advancing it.
func (e Engine) Snapshot(st WorldState, env model.EnvironmentSample) model.Snapshot {
	demand := 0.0
	for _, d := range st.Devices {
		demand += d.PowerKW
	}
	return e.project(st, env, demand, dispatch.GridImport(demand, env.SolarKW, st.Battery.PowerKW))
}
