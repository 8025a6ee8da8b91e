package service

import (
	"errors"
	"fmt"
)

var (
	ErrLotteryNotFound     = errors.New("lottery not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrAlreadyDrawn        = errors.New("lottery already drawn")
	ErrParticipationClosed = errors.New("participation closed")
	// ErrInvalidTransition is returned when a ticket's payment status does not allow the requested change.
	ErrInvalidTransition = errors.New("payment status does not allow this change")
)

// ClosedError carries the reason the participation window rejected a reservation.
type ClosedError struct {
	Reason string
}

func (e *ClosedError) Error() string {
	return "participation closed: " + e.Reason
}

func (e *ClosedError) Is(target error) bool {
	return target == ErrParticipationClosed
}

type NumberTakenError struct {
	Number string
}

func (e *NumberTakenError) Error() string {
	return fmt.Sprintf("number %s is already taken", e.Number)
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// StoreError wraps an unexpected persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
