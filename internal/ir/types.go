package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// AgentID identifies an agent. Agent ids are dense: exactly 0..n-1 for a
// population of n, and each id equals the topology node the agent occupies.
type AgentID int

// State is the health state of an agent.
type State uint8

const (
	// Healthy agents can be infected by an infected neighbour.
	Healthy State = iota
	// Infected agents may infect a neighbour and may recover.
	Infected
)

// String returns the upper-case state name used in traces and tables.
func (s State) String() string {
	switch s {
	case Healthy:
		return "HEALTHY"
	case Infected:
		return "INFECTED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	switch s {
	case Healthy, Infected:
		return true
	default:
		return false
	}
}

// ParseState parses a state name (case-insensitive).
func ParseState(s string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HEALTHY":
		return Healthy, nil
	case "INFECTED":
		return Infected, nil
	default:
		return 0, fmt.Errorf("unknown state %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Event is the transition an agent went through during one tick.
//
// The zero value is Nothing so that a per-tick reset is a plain assignment.
type Event uint8

const (
	// Nothing means the agent did not change this tick.
	Nothing Event = iota
	// Infect means the agent became infected this tick.
	Infect
	// Recover means the agent recovered this tick (or had an infection reverted).
	Recover
)

// String returns the upper-case event name used in traces and tables.
func (e Event) String() string {
	switch e {
	case Nothing:
		return "NOTHING"
	case Infect:
		return "INFECT"
	case Recover:
		return "RECOVER"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}

// Valid reports whether e is one of the declared events.
func (e Event) Valid() bool {
	switch e {
	case Nothing, Infect, Recover:
		return true
	default:
		return false
	}
}

// ParseEvent parses an event name (case-insensitive).
func ParseEvent(s string) (Event, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NOTHING":
		return Nothing, nil
	case "INFECT":
		return Infect, nil
	case "RECOVER":
		return Recover, nil
	default:
		return 0, fmt.Errorf("unknown event %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid event %d", uint8(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(text []byte) error {
	parsed, err := ParseEvent(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Cause records which agent caused this tick's infection.
//
// NoCause is used for seed infections, recoveries and ticks without an
// infection. Any other value is the id of the infecting agent.
type Cause int

// NoCause is the "no cause" sentinel.
const NoCause Cause = -100

// CausedBy returns the cause for an infection sent by id.
func CausedBy(id AgentID) Cause {
	return Cause(id)
}

// Sender returns the infecting agent and true, or false for NoCause.
func (c Cause) Sender() (AgentID, bool) {
	if c == NoCause {
		return 0, false
	}
	return AgentID(c), true
}

// String returns the sender id, or the empty string for NoCause.
func (c Cause) String() string {
	if c == NoCause {
		return ""
	}
	return fmt.Sprintf("%d", int(c))
}

// ParseCause parses the table form of a cause: empty for NoCause,
// otherwise a non-negative agent id.
func ParseCause(s string) (Cause, error) {
	if s == "" {
		return NoCause, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return NoCause, fmt.Errorf("invalid cause %q: %w", s, err)
	}
	if n < 0 {
		return NoCause, fmt.Errorf("invalid cause %q: negative agent id", s)
	}
	return Cause(n), nil
}
