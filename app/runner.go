package app

import (
	"context"
	"time"

	"github.com/kilianp07/homesim/core/logger"
	"github.com/kilianp07/homesim/core/simulation"
)

// Runner paces running sessions: every interval each running session
// advances one step through the manager, which reports it to its observer.
type Runner struct {
	mgr      *simulation.Manager
	interval time.Duration
	log      logger.Logger
}

// NewRunner creates a runner ticking every interval.
func NewRunner(mgr *simulation.Manager, interval time.Duration, log logger.Logger) *Runner {
	return &Runner{mgr: mgr, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.TickAll()
		}
	}
}

// TickAll advances every running session once and returns how many moved.
func (r *Runner) TickAll() int {
	sessions := r.mgr.Running()
	for _, s := range sessions {
		snap, _ := r.mgr.Advance(s)
		for _, w := range snap.Warnings {
			r.log.Debugw("step warning", map[string]any{"session": s.ID(), "step": snap.Step, "warning": w})
		}
	}
	return len(sessions)
}
