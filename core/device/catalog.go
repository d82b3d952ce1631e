package device

import (
	"fmt"

	"github.com/kilianp07/homesim/core/model"
)

// Definition is the configuration form of a device.
type Definition struct {
	ID         string  `json:"id" yaml:"id"`
	Kind       string  `json:"kind" yaml:"kind"`
	Group      string  `json:"group" yaml:"group"`
	RatedPower float64 `json:"rated_power" yaml:"rated_power"`
	MinPower   float64 `json:"min_power" yaml:"min_power"`
	MaxPower   float64 `json:"max_power" yaml:"max_power"`
}

// DefaultSpecs returns the built-in household in publication order.
func DefaultSpecs() []Spec {
	return []Spec{
		{ID: IDHVAC, Kind: model.KindHVAC, MaxPower: 2.0},
		{ID: IDWaterHeater, Kind: model.KindWaterHeater, MaxPower: 4.5},
		{ID: IDEV, Kind: model.KindEV, MaxPower: 7.0},
		{ID: IDDishwasher, Kind: model.KindAppliance, Group: "deadline", RatedPower: 1.8},
		{ID: IDWashMachine, Kind: model.KindAppliance, Group: "deadline", RatedPower: 0.4},
		{ID: IDClothesDryer, Kind: model.KindAppliance, Group: "dependent", RatedPower: 1.2},
		{ID: IDTV, Kind: model.KindAppliance, Group: "flexible", RatedPower: 0.1},
		{ID: IDRefrigerator, Kind: model.KindAppliance, Group: "flexible", RatedPower: 0.2},
		{ID: IDLights, Kind: model.KindAppliance, Group: "flexible", RatedPower: 0.2},
		{ID: IDVacuum, Kind: model.KindAppliance, Group: "flexible", RatedPower: 1.2},
		{ID: IDHairDryer, Kind: model.KindAppliance, Group: "flexible", RatedPower: 1.0},
	}
}

// ApplyDefinitions overlays defs on base. A definition matching an existing id
// replaces the non-zero fields of that spec; a new id is appended and must
// carry a kind. The base slice is not modified.
func ApplyDefinitions(base []Spec, defs []Definition) ([]Spec, error) {
	out := make([]Spec, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[s.ID] = i
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: definition without id", ErrInvalidDefinition)
		}
		i, known := index[d.ID]
		if !known {
			if d.Kind == "" {
				return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, d.ID)
			}
			out = append(out, Spec{ID: d.ID})
			i = len(out) - 1
			index[d.ID] = i
		}
		s := &out[i]
		if d.Kind != "" {
			k, err := model.ParseDeviceKind(d.Kind)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, d.ID, err)
			}
			if known && k != s.Kind {
				return nil, fmt.Errorf("%w: %s is %s, not %s", ErrInvalidDefinition, d.ID, s.Kind, k)
			}
			s.Kind = k
		}
		if d.Group != "" {
			s.Group = d.Group
		}
		if d.RatedPower > 0 {
			s.RatedPower = d.RatedPower
		}
		if d.MinPower > 0 {
			s.MinPower = d.MinPower
		}
		if d.MaxPower > 0 {
			s.MaxPower = d.MaxPower
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
