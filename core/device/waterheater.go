package device

import (
	"math"

	"github.com/kilianp07/homesim/core/model"
)

// WaterHeaterParams are the tank constants.
type WaterHeaterParams struct {
	SpecificHeat float64 // kJ/kg·°C
	Density      float64 // kg/L
	VolumeL      float64
	Insulation   float64 // °C/h per °C above ambient
	Efficiency   float64
	MaxPowerKW   float64
	MinPowerKW   float64
	Setpoint     float64
	ColdSupply   float64
	Ambient      float64
}

// DefaultWaterHeaterParams returns a 200 L electric tank.
func DefaultWaterHeaterParams() WaterHeaterParams {
	return WaterHeaterParams{
		SpecificHeat: 4.186,
		Density:      1.0,
		VolumeL:      200,
		Insulation:   0.05,
		Efficiency:   0.92,
		MaxPowerKW:   4.5,
		Setpoint:     60.0,
		ColdSupply:   15.0,
		Ambient:      22.0,
	}
}

// WaterHeater models tank temperature. State.Level is the tank temperature.
type WaterHeater struct {
	Params WaterHeaterParams
}

// NewWaterHeater returns a water heater with default parameters.
func NewWaterHeater() WaterHeater { return WaterHeater{Params: DefaultWaterHeaterParams()} }

// Usage returns the fraction of the tank replaced by cold water during a step
// starting at the given hour.
func Usage(hour int) float64 {
	switch {
	case hour >= 6 && hour <= 9:
		return 0.10
	case hour >= 18 && hour <= 22:
		return 0.08
	case hour >= 11 && hour <= 14:
		return 0.03
	default:
		return 0.01
	}
}

// Step implements Model.
func (w WaterHeater) Step(s model.DeviceState, c model.Conditions, ctl model.Control) (model.DeviceState, float64) {
	p := w.Params
	tank := s.Level
	loss := p.Insulation * (tank - p.Ambient) * model.StepHours
	pull := Usage(c.Clock.Hour()) * (p.ColdSupply - tank)

	next := s
	next.Active = ctl.Active
	next.PowerKW = 0
	heatCap := p.SpecificHeat * p.Density * p.VolumeL
	if !ctl.Active || tank >= p.Setpoint || heatCap <= 0 || p.Efficiency <= 0 {
		next.Level = tank - loss + pull
		return next, 0
	}

	energy := heatCap * (p.Setpoint - tank) / 3600
	required := energy / model.StepHours / p.Efficiency
	power := applyMin(math.Min(required, ctl.Limit(p.MaxPowerKW)), p.MinPowerKW)
	rise := power * p.Efficiency * model.StepHours * 3600 / heatCap

	next.Level = tank + rise - loss + pull
	next.PowerKW = power
	return next, power
}
