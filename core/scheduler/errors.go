package scheduler

import "fmt"

// ConfigurationError reports a malformed range in an appliance definition.
type ConfigurationError struct {
	Appliance string
	Field     string
	Bounds    []int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("appliance %s: invalid %s range %v: want [min, max]", e.Appliance, e.Field, e.Bounds)
}

// InfeasibleScheduleError reports a deadline too early for the run duration.
type InfeasibleScheduleError struct {
	Appliance string
	Earliest  int
	Latest    int
}

func (e *InfeasibleScheduleError) Error() string {
	return fmt.Sprintf("appliance %s: latest start %d before earliest start %d", e.Appliance, e.Latest, e.Earliest)
}
