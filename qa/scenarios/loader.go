package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/homesim/core/simulation"
)

// ActionDef is a command applied before step At is simulated.
type ActionDef struct {
	At     int    `yaml:"at"`
	Action string `yaml:"action"`
	Device string `yaml:"device,omitempty"`
	Active bool   `yaml:"active,omitempty"`
}

func (a ActionDef) ToCommand() simulation.Command {
	return simulation.Command{Action: a.Action, Device: a.Device, Active: a.Active}
}

type DeviceExpectation struct {
	Active  bool    `yaml:"active"`
	PowerKW float64 `yaml:"power"`
}

type Expected struct {
	Ticks   int                          `yaml:"ticks"`
	Days    int                          `yaml:"days"`
	Devices map[string]DeviceExpectation `yaml:"devices,omitempty"`
}

type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Seed        int64       `yaml:"seed"`
	Steps       int         `yaml:"steps"`
	Actions     []ActionDef `yaml:"actions,omitempty"`
	Expected    Expected    `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Steps <= 0 {
		return nil, fmt.Errorf("scenario %s: steps must be positive", sc.Name)
	}
	for _, a := range sc.Actions {
		if err := a.ToCommand().Validate(); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}
	return &sc, nil
}
