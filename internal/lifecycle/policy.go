// Package lifecycle decides which order status transitions the store accepts.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/quickbite/api/internal/enum"
)

// Policy selects how strictly status transitions are checked.
type Policy string

const (
	// Permissive lets any status overwrite any other, terminal orders included.
	Permissive Policy = "permissive"
	// Forward allows any move to a later state and treats a same-state move as a no-op.
	Forward Policy = "forward"
	// Strict allows only the single next state.
	Strict Policy = "strict"
)

// ErrInvalidTransition is returned when a policy rejects a transition.
var ErrInvalidTransition = errors.New("invalid status transition")

// ParsePolicy maps a configuration value to a Policy. Empty selects Forward.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return Forward, nil
	case Permissive, Forward, Strict:
		return p, nil
	}
	return "", fmt.Errorf("unknown status policy %q", s)
}

// Guarded reports whether updates must be conditional on the status that was read.
// Permissive updates are last-writer-wins.
func (p Policy) Guarded() bool {
	return p != Permissive
}

// Check returns nil when moving from current to next is allowed.
func (p Policy) Check(current, next enum.OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	switch p {
	case Permissive:
		return nil
	case Forward:
		if current == next {
			return nil
		}
		if current.Terminal() {
			return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, current)
		}
		if next.Rank() < current.Rank() {
			return fmt.Errorf("%w: cannot move back from %s to %s", ErrInvalidTransition, current, next)
		}
		return nil
	case Strict:
		want, ok := current.Next()
		if !ok || want != next {
			return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown policy %q", ErrInvalidTransition, p)
}
