package scheduler

import "github.com/kilianp07/homesim/core/model"

// Window is a half-open run [Start, End) in step-of-day units. End may exceed
// the day length, in which case the run continues into the next day.
type Window struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether step-of-day s lies inside the window.
func (w Window) Contains(s int) bool { return s >= w.Start && s < w.End }

// Spills reports whether the window of the previous day still covers
// step-of-day s.
func (w Window) Spills(s int) bool {
	return w.End > model.StepsPerDay && s < w.End-model.StepsPerDay
}

// Plan holds the windows drawn for one simulated day.
type Plan struct {
	Day      int               `json:"day"`
	Windows  map[string]Window `json:"windows"`
	Skipped  map[string]error  `json:"-"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Window returns the run of id, if any.
func (p Plan) Window(id string) (Window, bool) {
	w, ok := p.Windows[id]
	return w, ok
}

// Active reports whether id runs at step-of-day s, taking spillover from
// prev into account. prev may be nil.
func (p Plan) Active(id string, s int, prev *Plan) bool {
	if w, ok := p.Windows[id]; ok && w.Contains(s) {
		return true
	}
	if prev != nil {
		if w, ok := prev.Windows[id]; ok && w.Spills(s) {
			return true
		}
	}
	return false
}
