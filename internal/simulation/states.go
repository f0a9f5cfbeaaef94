package simulation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotRunning        = errors.New("simulation not running")
	ErrUnknownComponent  = errors.New("unknown component")
	ErrNotInteractive    = errors.New("component is not interactive")
	ErrUnmappedPin       = errors.New("pin has no port address")
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateError   State = "error"
)

type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
	CommandReset Command = "reset"
)

var validTransitions = map[State][]State{
	StateIdle:    {StateRunning, StateError},
	StateRunning: {StateStopped, StateError},
	StateStopped: {StateRunning, StateIdle, StateError},
	StateError:   {StateIdle},
}

func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}
	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Status is the externally visible state of a session.
type Status struct {
	State           State      `json:"state"`
	RunID           string     `json:"run_id,omitempty"`
	Circuit         string     `json:"circuit"`
	Board           string     `json:"board"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	PortWrites      int        `json:"port_writes"`
	BoundComponents []string   `json:"bound_components"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	LastStateChange time.Time  `json:"last_state_change"`
}
