package device

import (
	"fmt"

	"github.com/kilianp07/homesim/core/model"
)

// Constructor builds a model from a spec.
type Constructor func(Spec) (Model, error)

// Registry dispatches model construction by device kind.
type Registry struct {
	constructors map[model.DeviceKind]Constructor
}

// NewRegistry returns a registry holding the four built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[model.DeviceKind]Constructor)}
	r.Register(model.KindHVAC, newHVACFromSpec)
	r.Register(model.KindWaterHeater, newWaterHeaterFromSpec)
	r.Register(model.KindEV, newEVFromSpec)
	r.Register(model.KindAppliance, func(s Spec) (Model, error) {
		return Appliance{RatedKW: s.RatedPower}, nil
	})
	return r
}

// Register replaces the constructor for kind.
func (r *Registry) Register(kind model.DeviceKind, c Constructor) {
	r.constructors[kind] = c
}

// Build validates spec and instantiates its model.
func (r *Registry) Build(spec Spec) (Device, error) {
	if err := spec.Validate(); err != nil {
		return Device{}, err
	}
	c, ok := r.constructors[spec.Kind]
	if !ok {
		return Device{}, fmt.Errorf("%w: no model for kind %s", ErrUnknownDevice, spec.Kind)
	}
	m, err := c(spec)
	if err != nil {
		return Device{}, fmt.Errorf("build %s: %w", spec.ID, err)
	}
	return Device{Spec: spec, Model: m}, nil
}

// BuildAll instantiates every spec in order.
func (r *Registry) BuildAll(specs []Spec) ([]Device, error) {
	out := make([]Device, 0, len(specs))
	for _, s := range specs {
		d, err := r.Build(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func newHVACFromSpec(s Spec) (Model, error) {
	h := NewHVAC()
	if s.MaxPower > 0 {
		h.Params.MaxCoolingKW = s.MaxPower
		h.Params.MaxHeatingKW = s.MaxPower
	}
	h.Params.MinPowerKW = s.MinPower
	return h, nil
}

func newWaterHeaterFromSpec(s Spec) (Model, error) {
	w := NewWaterHeater()
	if s.MaxPower > 0 {
		w.Params.MaxPowerKW = s.MaxPower
	}
	w.Params.MinPowerKW = s.MinPower
	return w, nil
}

func newEVFromSpec(s Spec) (Model, error) {
	e := NewEV()
	if s.MaxPower > 0 {
		e.Params.MaxRateKW = s.MaxPower
	}
	if s.MinPower > 0 {
		e.Params.MinRequiredKW = s.MinPower
	}
	return e, nil
}
