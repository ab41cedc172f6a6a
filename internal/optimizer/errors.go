package optimizer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed constraints or candidate rows
	ErrInvalidInput = errors.New("invalid allocation input")

	// ErrInfeasible marks constraints that no portfolio can satisfy
	ErrInfeasible = errors.New("allocation infeasible")

	// ErrInvariantViolation marks a bug inside an allocator
	ErrInvariantViolation = errors.New("allocation invariant violated")
)

// InvariantError reports an internal inconsistency detected after an
// allocator ran. It is never caused by caller input.
type InvariantError struct {
	Strategy Strategy
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s allocator: %v: %s", e.Strategy, ErrInvariantViolation, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func invalidField(field, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, fmt.Sprintf(format, args...))
}

func infeasible(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInfeasible, fmt.Sprintf(format, args...))
}

func invariant(strategy Strategy, format string, args ...interface{}) error {
	return &InvariantError{Strategy: strategy, Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err is a caller validation error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInfeasible reports whether err is an infeasibility error
func IsInfeasible(err error) bool {
	return errors.Is(err, ErrInfeasible)
}

// IsInvariantViolation reports whether err signals an allocator bug
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
