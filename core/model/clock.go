package model

import "fmt"

const (
	// StepsPerDay is the number of simulation steps in one simulated day.
	StepsPerDay = 96
	// StepMinutes is the simulated duration of a single step.
	StepMinutes = 15
	// StepHours is StepMinutes expressed in hours, the Δt of every device model.
	StepHours = float64(StepMinutes) / 60
)

// Clock derives calendar values from the monotonic step counter.
type Clock struct {
	Step int
}

// Day returns the 1-based simulated day.
func (c Clock) Day() int { return c.Step/StepsPerDay + 1 }

// StepOfDay returns the step index inside the current day in [0, StepsPerDay).
func (c Clock) StepOfDay() int { return c.Step % StepsPerDay }

// Hour returns the integer local hour.
func (c Clock) Hour() int { return c.StepOfDay() * StepMinutes / 60 }

// Minute returns the minute within the current hour.
func (c Clock) Minute() int { return c.StepOfDay() * StepMinutes % 60 }

// FractionalHour returns the local time as hours, e.g. 20.25 for 20:15.
func (c Clock) FractionalHour() float64 {
	return float64(c.StepOfDay()*StepMinutes) / 60
}

// TimeOfDay formats the local time as HH:MM.
func (c Clock) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}
