package device

import (
	"math"

	"github.com/kilianp07/homesim/core/model"
)

// EVParams are the vehicle and charger constants.
type EVParams struct {
	CapacityKWh   float64
	MaxSoC        float64
	TargetSoC     float64
	MaxRateKW     float64
	MinRequiredKW float64
	Efficiency    float64
	LowPrice      float64
	HighPrice     float64
	DepartureHour float64
	ArrivalHour   float64
	ArrivalSoCMin float64
	ArrivalSoCMax float64
}

// DefaultEVParams returns a 60 kWh car on a 7 kW wallbox.
func DefaultEVParams() EVParams {
	return EVParams{
		CapacityKWh:   60,
		MaxSoC:        0.95,
		TargetSoC:     0.85,
		MaxRateKW:     7.0,
		MinRequiredKW: 0.1,
		Efficiency:    0.9,
		LowPrice:      0.025,
		HighPrice:     0.045,
		DepartureHour: 7,
		ArrivalHour:   18,
		ArrivalSoCMin: 0.30,
		ArrivalSoCMax: 0.40,
	}
}

// EV models a vehicle charger. State.Level is the SoC fraction.
type EV struct {
	Params EVParams
}

// NewEV returns an EV model with default parameters.
func NewEV() EV { return EV{Params: DefaultEVParams()} }

// Connected reports whether the car is plugged in at the given clock.
func (e EV) Connected(c model.Clock) bool {
	h := float64(c.Hour())
	return h >= e.Params.ArrivalHour || h < e.Params.DepartureHour
}

// HoursToDeparture counts from the start of the current local hour to the
// next departure, never less than one step.
func (e EV) HoursToDeparture(c model.Clock) float64 {
	t := float64(c.Hour())
	dep := e.Params.DepartureHour
	var h float64
	if t < dep {
		h = dep - t
	} else {
		h = (24 - t) + dep
	}
	return math.Max(h, model.StepHours)
}

// ArrivalSoC maps a uniform draw u in [0,1) onto the arrival SoC range.
func (e EV) ArrivalSoC(u float64) float64 {
	return e.Params.ArrivalSoCMin + u*(e.Params.ArrivalSoCMax-e.Params.ArrivalSoCMin)
}

// ChargeRate applies the price tiers to the power required to reach the
// target SoC by departure.
func (e EV) ChargeRate(required, price float64) float64 {
	p := e.Params
	minimal := required / p.Efficiency
	switch {
	case price <= p.LowPrice:
		return p.MaxRateKW
	case price >= p.HighPrice || p.HighPrice <= p.LowPrice:
		return minimal
	default:
		ratio := (price - p.LowPrice) / (p.HighPrice - p.LowPrice)
		return p.MaxRateKW - ratio*(p.MaxRateKW-minimal)
	}
}

func (e EV) clampSoC(soc float64) float64 {
	return math.Max(0, math.Min(e.Params.MaxSoC, soc))
}

// Step implements Model.
func (e EV) Step(s model.DeviceState, c model.Conditions, ctl model.Control) (model.DeviceState, float64) {
	p := e.Params
	next := s
	next.Level = e.clampSoC(s.Level)
	next.Connected = e.Connected(c.Clock)
	next.HoursToDeparture = 0
	next.PowerKW = 0
	next.Active = false
	if !next.Connected {
		return next, 0
	}
	next.HoursToDeparture = e.HoursToDeparture(c.Clock)
	if !ctl.Active || p.CapacityKWh <= 0 || p.Efficiency <= 0 {
		return next, 0
	}
	next.Active = true

	soc := next.Level
	required := (p.TargetSoC - soc) * p.CapacityKWh / next.HoursToDeparture
	if required < p.MinRequiredKW {
		return next, 0
	}
	power := math.Min(e.ChargeRate(required, c.Environment.PricePerKWh), ctl.Limit(p.MaxRateKW))
	acceptance := (p.MaxSoC - soc) * p.CapacityKWh / model.StepHours
	power = math.Max(0, math.Min(power, acceptance))

	next.Level = e.clampSoC(soc + power*p.Efficiency*model.StepHours/p.CapacityKWh)
	next.PowerKW = power
	return next, power
}
