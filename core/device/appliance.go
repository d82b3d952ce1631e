package device

import "github.com/kilianp07/homesim/core/model"

// Appliance draws its rated power while switched on.
type Appliance struct {
	RatedKW float64
}

// Step implements Model.
func (a Appliance) Step(s model.DeviceState, _ model.Conditions, ctl model.Control) (model.DeviceState, float64) {
	next := s
	next.Active = ctl.Active
	next.PowerKW = 0
	if ctl.Active {
		next.PowerKW = a.RatedKW
	}
	return next, next.PowerKW
}
