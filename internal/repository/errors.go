// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrSlotFull signals that a booking lost the
// race for the last remaining seat.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrSlotNotFound indicates that a slot was not located in the DB.
var ErrSlotNotFound = errors.New("slot not found")

// ErrBookingNotFound indicates that a booking was not located in the DB.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSlotFull is returned when the conditional occupancy increment
// matched no row because booked_count had already reached capacity.
// Handlers should translate this into an HTTP 409 response.
var ErrSlotFull = errors.New("slot full")

// ErrDuplicateBooking is returned when the (slot_id, user_id) pair
// already carries an ACTIVE booking. The unique key on the pair is
// the authoritative guard; the fast-path lookup in the handler is
// only an optimization.
var ErrDuplicateBooking = errors.New("duplicate booking")

// ErrAlreadyCancelled is returned when cancelling a booking whose
// status is already CANCELLED. Cancellation is deliberately not
// idempotent at the API level.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrCapacityConflict is returned when a capacity update would set
// capacity below the current booked_count.
var ErrCapacityConflict = errors.New("capacity below booked count")

// ErrHasActiveBookings is returned when a slot with booked_count > 0
// is deleted. Handlers should translate this into an HTTP 409.
var ErrHasActiveBookings = errors.New("slot has active bookings")
