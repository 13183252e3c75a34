package domain

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld is returned when the single-instance lock is already held.
	ErrLockHeld = errors.New("lock already held")

	// ErrInsufficientBalance is returned when free balance cannot cover a
	// reservation or trade leg.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBelowMinimum is returned when a sized trade falls below the
	// minimum notional floor.
	ErrBelowMinimum = errors.New("trade size below minimum")

	// ErrEmergencyStop is returned when execution is refused because the
	// emergency-stop flag is set.
	ErrEmergencyStop = errors.New("emergency stop active")
)
