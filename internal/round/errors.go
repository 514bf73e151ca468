package round

import (
	"errors"
	"fmt"
)

// ErrNoSessions is returned when the store holds no session records at all.
var ErrNoSessions = errors.New("no sessions")

// ErrNoActiveSession is returned when every stored session has ended.
var ErrNoActiveSession = errors.New("no active session")

// ErrSessionConflict is returned when a conditional create or update loses
// to a concurrent writer. The caller re-reads and carries on; the next tick
// self-heals whatever was actually persisted.
var ErrSessionConflict = errors.New("session conflict")

// StoreError wraps an I/O failure talking to the session store. Store
// errors abort the current tick and are retried by the next scheduled one;
// they are never fatal to the process.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// InvariantViolationError reports that more than one non-ended session was
// observed. It is logged and resolved opportunistically by later ticks
// rather than crashing anything.
type InvariantViolationError struct {
	ActiveCount int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %d non-ended sessions", e.ActiveCount)
}
