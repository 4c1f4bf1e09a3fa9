package model

import "time"

// Booking status values as stored in the bookings.status column.
const (
	BookingStatusActive    = "ACTIVE"
	BookingStatusCancelled = "CANCELLED"
)

// Booking records one user's claim on one seat of one slot.  At most
// one row may ever exist per (SlotID, UserID) pair; the pair carries a
// unique key in the database and a cancelled row is reused when the
// same user books the slot again.  Rows are never deleted.
//
// Fields:
//  ID        – primary key identifier.
//  SlotID    – slot the seat belongs to.
//  UserID    – user holding (or having held) the seat.
//  Status    – ACTIVE or CANCELLED.
//  BookedAt  – when the booking was made (or remade).
//  UpdatedAt – last status change.
type Booking struct {
	ID        uint64    // bookings.id
	SlotID    uint64    // bookings.slot_id
	UserID    uint64    // bookings.user_id
	Status    string    // bookings.status
	BookedAt  time.Time // bookings.booked_at
	UpdatedAt time.Time // bookings.updated_at
}
