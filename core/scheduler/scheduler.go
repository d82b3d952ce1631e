package scheduler

import (
	"errors"
	"fmt"

	"github.com/kilianp07/homesim/core/logger"
)

// Rand is the random source used for draws. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// UniformInt draws an integer in [bounds[0], bounds[1]]. Equal bounds are
// returned without consuming randomness.
func UniformInt(rng Rand, bounds []int) (int, error) {
	if len(bounds) != 2 || bounds[0] > bounds[1] {
		return 0, &ConfigurationError{Bounds: bounds}
	}
	lo, hi := bounds[0], bounds[1]
	if lo == hi {
		return lo, nil
	}
	return lo + rng.Intn(hi-lo+1), nil
}

// Scheduler produces one Plan per simulated day.
type Scheduler struct {
	Catalog Catalog
	Rand    Rand
	Log     logger.Logger
}

// New returns a scheduler over catalog drawing from rng.
func New(catalog Catalog, rng Rand, log logger.Logger) *Scheduler {
	return &Scheduler{Catalog: catalog, Rand: rng, Log: log}
}

func (s *Scheduler) draw(id, field string, bounds []int) (int, error) {
	v, err := UniformInt(s.Rand, bounds)
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		cfgErr.Appliance, cfgErr.Field = id, field
	}
	return v, err
}

// Generate draws the windows of day. Independent appliances are planned in
// catalog order, dependents afterwards so their parent is known. Errors only
// drop the appliance they concern.
func (s *Scheduler) Generate(day int) Plan {
	p := Plan{Day: day, Windows: make(map[string]Window), Skipped: make(map[string]error)}
	var dependents []Entry
	for _, e := range s.Catalog {
		var (
			w   Window
			err error
		)
		switch st := e.Strategy.(type) {
		case Deadline:
			w, err = s.deadline(e.ID, st)
		case Flexible:
			w, err = s.flexible(e.ID, st)
		case Dependent:
			dependents = append(dependents, e)
			continue
		default:
			err = fmt.Errorf("appliance %s: unsupported strategy %T", e.ID, e.Strategy)
		}
		if err != nil {
			s.skip(&p, e.ID, err)
			continue
		}
		p.Windows[e.ID] = w
	}
	for _, e := range dependents {
		st := e.Strategy.(Dependent)
		parent, ok := p.Windows[st.After]
		if !ok {
			p.Windows[e.ID] = st.Fallback
			msg := fmt.Sprintf("%s: %s not scheduled on day %d, using fallback window %d-%d", e.ID, st.After, day, st.Fallback.Start, st.Fallback.End)
			p.Warnings = append(p.Warnings, msg)
			s.warn(msg)
			continue
		}
		p.Windows[e.ID] = Window{Start: parent.End, End: parent.End + st.Duration}
	}
	if s.Log != nil {
		s.Log.Debugw("appliance plan generated", map[string]any{"day": day, "windows": len(p.Windows), "skipped": len(p.Skipped)})
	}
	return p
}

func (s *Scheduler) deadline(id string, d Deadline) (Window, error) {
	earliest, err := s.draw(id, "start", d.Start)
	if err != nil {
		return Window{}, err
	}
	deadline, err := s.draw(id, "deadline", d.Deadline)
	if err != nil {
		return Window{}, err
	}
	latest := deadline - d.Duration
	if latest < earliest {
		return Window{}, &InfeasibleScheduleError{Appliance: id, Earliest: earliest, Latest: latest}
	}
	start, err := s.draw(id, "start", []int{earliest, latest})
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: start + d.Duration}, nil
}

func (s *Scheduler) flexible(id string, f Flexible) (Window, error) {
	start, err := s.draw(id, "start", f.Start)
	if err != nil {
		return Window{}, err
	}
	dur, err := s.draw(id, "duration", f.Duration)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: start + dur}, nil
}

func (s *Scheduler) skip(p *Plan, id string, err error) {
	p.Skipped[id] = err
	p.Warnings = append(p.Warnings, err.Error())
	s.warn(err.Error())
}

func (s *Scheduler) warn(msg string) {
	if s.Log != nil {
		s.Log.Warnf("%s", msg)
	}
}
