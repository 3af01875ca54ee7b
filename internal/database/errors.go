package database

import "errors"

var (
	// ErrNotFound is returned when a lookup by id or confirmation code
	// matches no row.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyTerminal is returned by state-guarded updates when the
	// row left the expected state first. Duplicate cancel/finish calls
	// surface as this error instead of releasing slots twice.
	ErrAlreadyTerminal = errors.New("already in terminal state")

	// ErrSlotTaken is returned when a conditional slot acquire finds the
	// cell occupied.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrNoTable is returned when no table satisfies capacity and
	// availability for a requested window.
	ErrNoTable = errors.New("no table available")

	// ErrPastDate rejects booking times that violate the advance-notice rule.
	ErrPastDate = errors.New("reservation time is too soon or in the past")

	// ErrDateTooFar rejects booking times beyond the horizon.
	ErrDateTooFar = errors.New("reservation time is too far ahead")
)
