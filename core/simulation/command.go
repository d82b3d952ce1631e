package simulation

import (
	"errors"
	"fmt"
)

// Command actions understood by Session.Apply.
const (
	ActionStart    = "start"
	ActionStop     = "stop"
	ActionReset    = "reset"
	ActionStep     = "step"
	ActionOverride = "override"
	ActionClear    = "clear"
)

// ErrInvalidCommand is returned for malformed commands.
var ErrInvalidCommand = errors.New("invalid command")

// Command is a lifecycle or device control request coming from a transport,
// e.g. {"action":"override","device":"dishwasher","active":true}.
type Command struct {
	Action string `json:"action"`
	Device string `json:"device,omitempty"`
	Active bool   `json:"active,omitempty"`
}

// Validate checks the action and its required fields.
func (c Command) Validate() error {
	switch c.Action {
	case ActionStart, ActionStop, ActionReset, ActionStep:
		return nil
	case ActionOverride, ActionClear:
		if c.Device == "" {
			return fmt.Errorf("%w: %s requires a device", ErrInvalidCommand, c.Action)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, c.Action)
	}
}

// Apply executes cmd on the session. A step taken here is not reported to
// any observer; transports go through Manager.Apply.
func (s *Session) Apply(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	switch cmd.Action {
	case ActionStart:
		s.Start()
	case ActionStop:
		s.Stop()
	case ActionReset:
		s.Reset()
	case ActionStep:
		s.Tick()
	case ActionOverride:
		return s.SetOverride(cmd.Device, cmd.Active)
	case ActionClear:
		return s.ClearOverride(cmd.Device)
	}
	return nil
}

// Apply routes cmd to the session id. Steps go through Advance so the
// OnStep observer sees them.
func (m *Manager) Apply(id string, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if cmd.Action == ActionStep {
		m.Advance(s)
		return nil
	}
	return s.Apply(cmd)
}
