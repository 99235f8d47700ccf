package engine

import (
	"errors"
	"fmt"

	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
)

// Kind classifies every failure the engine can return.
type Kind string

const (
	KindInvalidState       Kind = "invalid_state"
	KindUnauthorized       Kind = "unauthorized"
	KindWindowClosed       Kind = "window_closed"
	KindDuplicateAction    Kind = "duplicate_action"
	KindNotFound           Kind = "not_found"
	KindCapacityExceeded   Kind = "capacity_exceeded"
	KindArithmeticOverflow Kind = "arithmetic_overflow"
	KindValidationFailed   Kind = "validation_failed"
)

// Error is a typed engine failure. Two errors match under errors.Is when
// their kinds are equal, so the Err* sentinels below can be used to test
// the kind of any returned error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels, one per kind
var (
	ErrInvalidState       = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrWindowClosed       = &Error{Kind: KindWindowClosed, Message: "window closed"}
	ErrDuplicateAction    = &Error{Kind: KindDuplicateAction, Message: "duplicate action"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrCapacityExceeded   = &Error{Kind: KindCapacityExceeded, Message: "capacity exceeded"}
	ErrArithmeticOverflow = &Error{Kind: KindArithmeticOverflow, Message: "Arithmetic overflow occurred"}
	ErrValidationFailed   = &Error{Kind: KindValidationFailed, Message: "validation failed"}
)

func fail(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// storeError translates storage failures into engine kinds. Anything else
// is returned unchanged.
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return &Error{Kind: KindNotFound, Message: "Game session not found", Err: err}
	case errors.Is(err, store.ErrSessionExists):
		return &Error{Kind: KindDuplicateAction, Message: "Game session already exists", Err: err}
	}
	return err
}
