package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey matches every *DuplicateKeyError via errors.Is.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrOutOfSync matches every *OutOfSyncError via errors.Is.
	ErrOutOfSync = errors.New("store out of sync")
	// ErrInvalid marks rejected factory or method input.
	ErrInvalid = errors.New("invalid input")
)

// DuplicateKeyError is returned when a write would create a second row with
// an existing natural key or ID.
type DuplicateKeyError struct {
	Entity EntityType
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Entity, e.Key)
}

// Is lets errors.Is(err, ErrDuplicateKey) match.
func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// OutOfSyncError means an event referenced a row the store does not hold.
// Nothing recovers from it.
type OutOfSyncError struct {
	Entity EntityType
	ID     string
	Event  string
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("%s %q not found while applying %s", e.Entity, e.ID, e.Event)
}

// Is lets errors.Is(err, ErrOutOfSync) match.
func (e *OutOfSyncError) Is(target error) bool { return target == ErrOutOfSync }

// GameStatusError is returned when a game method is called in a status that
// does not allow it.
type GameStatusError struct {
	GameID string
	Status GameStatus
	Action string
}

func (e *GameStatusError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("game %q has status %s", e.GameID, e.Status)
	}
	return fmt.Sprintf("cannot %s game %q with status %s", e.Action, e.GameID, e.Status)
}

// UnknownEventTypeError is returned for an event type no handler or codec
// knows about.
type UnknownEventTypeError struct {
	Type string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
