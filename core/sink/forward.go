package sink

import (
	"context"

	"github.com/kilianp07/homesim/core/logger"
)

// Forward drains events into s until ctx is done or events is closed. Sink
// errors are logged and passed to onErr with the session they belong to;
// they never stop the loop.
func Forward(ctx context.Context, events <-chan Event, s Sink, log logger.Logger, onErr func(sessionID string, err error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			errs := []error{s.RecordSnapshot(ev.SessionID, ev.Snapshot)}
			if ev.Day != nil {
				if r, ok := s.(DaySummaryRecorder); ok {
					errs = append(errs, r.RecordDaySummary(ev.SessionID, *ev.Day))
				}
			}
			for _, err := range errs {
				if err == nil {
					continue
				}
				if log != nil {
					log.Errorf("sink %s: %v", ev.SessionID, err)
				}
				if onErr != nil {
					onErr(ev.SessionID, err)
				}
			}
		}
	}
}
