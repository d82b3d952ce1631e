package simulation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kilianp07/homesim/core/model"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// StepFunc observes a step taken by a running session. day is set when the
// step closed a day.
type StepFunc func(sessionID string, snap model.Snapshot, day *DaySummary)

// Manager owns the sessions of the process. Sessions never share state.
// Every step taken through the manager is reported to the OnStep observer,
// whichever transport asked for it.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	defaults Options
	onStep   StepFunc
}

// NewManager returns a manager creating sessions from defaults.
func NewManager(defaults Options) *Manager {
	return &Manager{sessions: make(map[string]*Session), defaults: defaults}
}

// Create builds a session with a fresh id. A non-nil seed overrides the
// default seed.
func (m *Manager) Create(seed *int64) (*Session, error) {
	opts := m.defaults
	if seed != nil {
		opts.Seed = *seed
	}
	id := uuid.NewString()
	s, err := NewSession(id, opts)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Add registers an existing session under its id.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID()]; ok {
		return fmt.Errorf("session %s already exists", s.ID())
	}
	m.sessions[s.ID()] = s
	return nil
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Delete removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	delete(m.sessions, id)
	return nil
}

// List returns the session ids in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Running returns the sessions currently running.
func (m *Manager) Running() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Running() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// OnStep sets the observer of Advance, Step and step commands.
func (m *Manager) OnStep(fn StepFunc) {
	m.mu.Lock()
	m.onStep = fn
	m.mu.Unlock()
}

// Advance steps s once and reports the step when s is running. Stopped
// sessions return their frozen snapshot and report nothing.
func (m *Manager) Advance(s *Session) (model.Snapshot, *DaySummary) {
	snap, day := s.Step()
	m.mu.RLock()
	fn := m.onStep
	m.mu.RUnlock()
	if fn != nil && snap.Running {
		fn(s.ID(), snap, day)
	}
	return snap, day
}

// Step advances the session id once.
func (m *Manager) Step(id string) (model.Snapshot, error) {
	s, err := m.Get(id)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, _ := m.Advance(s)
	return snap, nil
}
