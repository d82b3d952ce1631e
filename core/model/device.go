package model

import "fmt"

// DeviceKind tags the closed set of device models.
type DeviceKind int

const (
	KindAppliance DeviceKind = iota
	KindHVAC
	KindWaterHeater
	KindEV
)

// String returns the configuration name of the kind.
func (k DeviceKind) String() string {
	switch k {
	case KindAppliance:
		return "appliance"
	case KindHVAC:
		return "hvac"
	case KindWaterHeater:
		return "water_heater"
	case KindEV:
		return "ev"
	default:
		return "unknown"
	}
}

// ParseDeviceKind maps a configuration name back to its kind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch s {
	case "appliance", "fixed":
		return KindAppliance, nil
	case "hvac":
		return KindHVAC, nil
	case "water_heater":
		return KindWaterHeater, nil
	case "ev", "ev_charger":
		return KindEV, nil
	default:
		return 0, fmt.Errorf("unknown device kind %q", s)
	}
}

// DeviceState is the per-device slice of the world state.
type DeviceState struct {
	ID   string
	Kind DeviceKind
	// Level is the continuous state variable: indoor °C for HVAC, tank °C for
	// the water heater, SoC fraction for the EV. Unused for appliances.
	Level   float64
	Active  bool
	PowerKW float64

	// EV only.
	Connected        bool
	HoursToDeparture float64
}

// Control is the per-step decision handed to a device model by dispatch.
type Control struct {
	Active bool
	// PowerLimitKW caps the electrical draw. Zero means the model's own maximum.
	PowerLimitKW float64
	// Tier names the dispatch rule that produced the control.
	Tier string
}

// Limit returns the effective cap given a device maximum.
func (c Control) Limit(max float64) float64 {
	if c.PowerLimitKW > 0 && c.PowerLimitKW < max {
		return c.PowerLimitKW
	}
	return max
}
