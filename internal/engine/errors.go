package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/contagion/internal/ir"
)

// RuntimeError represents an error detected by the simulation core.
//
// Runtime errors include:
//   - Configuration: invalid model parameters, reported before any tick
//   - No neighbor: the activated agent had no eligible neighbor to draw
//
// Both are fatal for the run. Stochastic outcomes are never errors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Tick is the tick being executed, or -1 before the first tick.
	Tick int

	// Agent is the agent involved, or -1 if none.
	Agent ir.AgentID

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeConfiguration indicates invalid constructor arguments.
	ErrCodeConfiguration RuntimeErrorCode = "CONFIGURATION"

	// ErrCodeNoNeighbor indicates an activated agent could not pick a
	// neighbor other than itself.
	ErrCodeNoNeighbor RuntimeErrorCode = "NO_NEIGHBOR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Tick >= 0 && e.Agent >= 0 {
		return fmt.Sprintf("%s: %s (tick=%d, agent=%d)", e.Code, e.Message, e.Tick, e.Agent)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigurationError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeConfiguration
	}
	return false
}

// IsNoNeighborError returns true if the error is a no-neighbor error.
// Uses errors.As to handle wrapped errors.
func IsNoNeighborError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoNeighbor
	}
	return false
}

// NewConfigurationError creates a RuntimeError for invalid parameters.
func NewConfigurationError(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf(format, args...),
		Tick:    -1,
		Agent:   -1,
	}
}

// NewNoNeighborError creates a RuntimeError for an agent without an
// eligible neighbor. degree is the size of its neighbor list.
func NewNoNeighborError(tick int, agent ir.AgentID, degree int) *RuntimeError {
	msg := "agent has no neighbors"
	if degree > 0 {
		msg = "agent drew itself as neighbor (self-loop)"
	}
	return &RuntimeError{
		Code:    ErrCodeNoNeighbor,
		Message: msg,
		Tick:    tick,
		Agent:   agent,
		Details: map[string]string{
			"degree": fmt.Sprintf("%d", degree),
		},
	}
}
