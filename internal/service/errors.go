package service

import "errors"

var (
	// ErrInvalidGuests rejects non-positive party sizes.
	ErrInvalidGuests = errors.New("guest count must be positive")

	// ErrCheckinTooEarly — гость пришёл раньше времени брони
	ErrCheckinTooEarly = errors.New("check-in before reservation time")

	// ErrCheckinExpired — окно прибытия (15 минут) истекло
	ErrCheckinExpired = errors.New("check-in window expired")

	// ErrNoOffer is returned by ConfirmArrival when no table has been
	// offered to the entry yet.
	ErrNoOffer = errors.New("no table offered yet")

	// ErrOfferExpired is returned when the 15-minute confirmation window
	// lapsed; the entry is cancelled as a side effect.
	ErrOfferExpired = errors.New("confirmation window expired")
)
