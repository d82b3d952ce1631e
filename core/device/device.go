package device

import (
	"errors"
	"fmt"

	"github.com/kilianp07/homesim/core/model"
)

var (
	// ErrUnknownDevice is returned when a definition names a device that is
	// neither built in nor carries a kind.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrInvalidDefinition flags power bounds that cannot be honoured.
	ErrInvalidDefinition = errors.New("invalid device definition")
)

// Model advances one device by one step and reports its electrical draw in kW.
type Model interface {
	Step(state model.DeviceState, cond model.Conditions, ctl model.Control) (model.DeviceState, float64)
}

// Well-known device ids of the default household.
const (
	IDHVAC         = "hvac"
	IDWaterHeater  = "water_heater"
	IDEV           = "ev_charger"
	IDDishwasher   = "dishwasher"
	IDWashMachine  = "wash_machine"
	IDClothesDryer = "clothes_dryer"
	IDTV           = "tv"
	IDRefrigerator = "refrigerator"
	IDLights       = "lights"
	IDVacuum       = "vacuum"
	IDHairDryer    = "hair_dryer"
)

// Spec describes one device of the household. Zero power fields mean the
// model defaults apply.
type Spec struct {
	ID         string
	Kind       model.DeviceKind
	Group      string
	RatedPower float64
	MinPower   float64
	MaxPower   float64
}

// Validate checks the power bounds.
func (s Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDefinition)
	}
	if s.RatedPower < 0 || s.MinPower < 0 || s.MaxPower < 0 {
		return fmt.Errorf("%w: %s has negative power", ErrInvalidDefinition, s.ID)
	}
	if s.MaxPower > 0 && s.MinPower > s.MaxPower {
		return fmt.Errorf("%w: %s min_power %.2f above max_power %.2f", ErrInvalidDefinition, s.ID, s.MinPower, s.MaxPower)
	}
	if s.Kind == model.KindAppliance && s.RatedPower == 0 {
		return fmt.Errorf("%w: appliance %s needs rated_power", ErrInvalidDefinition, s.ID)
	}
	return nil
}

// Device binds a spec to its instantiated model.
type Device struct {
	Spec  Spec
	Model Model
}

// applyMin drops a draw below the device minimum to zero.
func applyMin(power, minPower float64) float64 {
	if minPower > 0 && power < minPower {
		return 0
	}
	return power
}
