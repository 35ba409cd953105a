package tosu

import "github.com/verte-zerg/osutrack/internal/model"

// Events receives what the state machine derives from raw ticks.
type Events interface {
	OnStateChanged(state model.SimplifiedState)
	OnRunStarted(beatmapID int, mods *model.Mods)
	OnRunFinished(beatmapID int)
}

// Machine turns game-state ticks into run-started and run-finished events.
// It is not safe for concurrent use; feed it from one goroutine.
type Machine struct {
	events  Events
	prev    model.GameState
	current model.SimplifiedState
}

// NewMachine returns a Machine in the Unknown state.
func NewMachine(events Events) *Machine {
	m := &Machine{events: events}
	m.Reset()
	return m
}

// Reset forgets the previous state, so the next Playing tick starts a run.
func (m *Machine) Reset() {
	m.prev = model.StateUnknown
	m.current = model.SimplifiedState{GameState: model.StateUnknown}
}

// Previous returns the state of the last processed tick.
func (m *Machine) Previous() model.GameState {
	return m.prev
}

// Current returns the projection of the last processed tick.
func (m *Machine) Current() model.SimplifiedState {
	return m.current
}

// Process handles one decoded tick.
func (m *Machine) Process(msg Message) {
	next := msg.GameState()
	prev := m.prev

	m.current = msg.Simplify()

	if prev != model.StatePlaying && next == model.StatePlaying {
		m.events.OnRunStarted(msg.BeatmapID(), msg.Mods())
	}
	// Leaving Playing any other way is a retry or a quit.
	if prev == model.StatePlaying && next == model.StateResultsScreen {
		m.events.OnRunFinished(msg.BeatmapID())
	}
	m.events.OnStateChanged(m.current)

	m.prev = next
}
