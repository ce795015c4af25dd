package status

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/dealroom/internal/bus"
)

// State represents a realtime channel state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Joined       State = "JOINED"
	Error        State = "ERROR"
)

// ErrRoomBusy is returned when joining a room while another room is still joined.
// Callers must leave the previous room first.
var ErrRoomBusy = errors.New("another deal room is still joined")

// ErrNotConnected is returned when room membership is requested without a live connection.
var ErrNotConnected = errors.New("realtime channel not connected")

// validTransitions defines allowed state transitions.
// JOINED is entered and left only through Join and Leave.
var validTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Error, Disconnected},
	Connected:    {Disconnected, Error},
	Joined:       {Disconnected, Error},
	Error:        {Connecting, Disconnected},
}

// Machine tracks and enforces realtime channel state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	room    string
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Room returns the joined deal room, or empty when not joined.
func (m *Machine) Room() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.room
}

// IsConnected reports whether the channel can carry traffic (CONNECTED or JOINED).
func (m *Machine) IsConnected() bool {
	s := m.Current()
	return s == Connected || s == Joined
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Leaving JOINED through a transition drops the room membership.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	m.set(to, "")
	return nil
}

// Join moves CONNECTED to JOINED(room). Joining the room already joined is a no-op
// and reports false; joining a different room fails with ErrRoomBusy.
func (m *Machine) Join(room string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.current {
	case Joined:
		if m.room == room {
			return false, nil
		}
		return false, fmt.Errorf("join %q: %w (joined %q)", room, ErrRoomBusy, m.room)
	case Connected:
		m.set(Joined, room)
		return true, nil
	default:
		return false, fmt.Errorf("join %q in state %s: %w", room, m.current, ErrNotConnected)
	}
}

// Leave moves JOINED(room) back to CONNECTED. Leaving a room that is not joined
// is a no-op and reports false.
func (m *Machine) Leave(room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != Joined || m.room != room {
		return false
	}
	m.set(Connected, "")
	return true
}

// set must be called with mu held.
func (m *Machine) set(to State, room string) {
	change := StatusChange{From: m.current, To: to, FromRoom: m.room, Room: room}
	m.current = to
	m.room = room
	m.bus.Publish(bus.NewEvent(bus.KindChannelStatus, change))
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From     State
	To       State
	FromRoom string
	Room     string
}
