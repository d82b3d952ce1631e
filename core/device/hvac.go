package device

import (
	"math"

	"github.com/kilianp07/homesim/core/model"
)

// HVACParams are the building and heat pump constants.
type HVACParams struct {
	COPCooling      float64
	COPHeating      float64
	BuildingFactor  float64 // kW/°C
	ThermalMass     float64 // kWh/°C
	Insulation      float64 // °C·h/kW
	CoolingSetpoint float64
	HeatingSetpoint float64
	ComfortRange    float64
	MaxCoolingKW    float64
	MaxHeatingKW    float64
	MinPowerKW      float64
}

// DefaultHVACParams returns the constants of a typical detached house.
func DefaultHVACParams() HVACParams {
	return HVACParams{
		COPCooling:      3.5,
		COPHeating:      2.5,
		BuildingFactor:  0.15,
		ThermalMass:     5.0,
		Insulation:      8.0,
		CoolingSetpoint: 20.0,
		HeatingSetpoint: 19.0,
		ComfortRange:    2.0,
		MaxCoolingKW:    2.0,
		MaxHeatingKW:    2.0,
	}
}

// HVAC models indoor temperature under heating, cooling and passive drift.
// State.Level is the indoor temperature in °C.
type HVAC struct {
	Params HVACParams
}

// NewHVAC returns an HVAC model with default parameters.
func NewHVAC() HVAC { return HVAC{Params: DefaultHVACParams()} }

func (h HVAC) drift(indoor, outdoor float64) float64 {
	if h.Params.Insulation <= 0 {
		return 0
	}
	return (outdoor - indoor) * (model.StepHours / h.Params.Insulation)
}

// Step implements Model.
func (h HVAC) Step(s model.DeviceState, c model.Conditions, ctl model.Control) (model.DeviceState, float64) {
	p := h.Params
	indoor := s.Level
	outdoor := c.Environment.OutdoorTempC
	next := s
	next.Active = ctl.Active
	if !ctl.Active {
		next.Level = indoor + h.drift(indoor, outdoor)
		next.PowerKW = 0
		return next, 0
	}

	cooling := outdoor > p.CoolingSetpoint
	setpoint, cop, maxKW := p.HeatingSetpoint, p.COPHeating, p.MaxHeatingKW
	if cooling {
		setpoint, cop, maxKW = p.CoolingSetpoint, p.COPCooling, p.MaxCoolingKW
	}
	diff := indoor - setpoint
	required := p.BuildingFactor * math.Abs(diff)
	switch {
	case (cooling && diff < 0) || (!cooling && diff > 0):
		required *= 0.5
	case (cooling && diff > p.ComfortRange) || (!cooling && diff < -p.ComfortRange):
		required *= 1.5
	}
	power := applyMin(math.Min(required, ctl.Limit(maxKW)), p.MinPowerKW)

	change := 0.0
	if p.ThermalMass > 0 {
		change = power * cop / p.ThermalMass * model.StepHours
	}
	if cooling {
		change = -change
	}
	next.Level = indoor + change + h.drift(indoor, outdoor)
	next.PowerKW = power
	return next, power
}
