package model

import "time"

// Slot represents a bookable time interval with a finite number of
// seats, owned by a single user.  The BookedCount column is a
// denormalized occupancy counter: it always equals the number of
// ACTIVE bookings referencing the slot, and is only ever changed
// through the conditional updates in the repository layer.
//
// Fields:
//  ID          – primary key identifier.
//  OwnerID     – user who created the slot.
//  StartsAt    – when the interval begins.
//  EndsAt      – when the interval ends (must be after StartsAt).
//  Capacity    – maximum number of ACTIVE bookings (>= 1).
//  BookedCount – current number of ACTIVE bookings (0..Capacity).
//  Tags        – normalized lowercase labels attached to the slot.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Slot struct {
	ID          uint64    // slots.id
	OwnerID     uint64    // slots.owner_id
	StartsAt    time.Time // slots.starts_at
	EndsAt      time.Time // slots.ends_at
	Capacity    uint32    // slots.capacity
	BookedCount uint32    // slots.booked_count
	Tags        []string  // slots.tags (comma separated in the DB)
	CreatedAt   time.Time // slots.created_at
	UpdatedAt   time.Time // slots.updated_at
}

// AvailableSeats returns the number of free seats on the slot.  It is
// always derived at read time and never persisted.
func (s *Slot) AvailableSeats() uint32 {
	if s.BookedCount >= s.Capacity {
		return 0
	}
	return s.Capacity - s.BookedCount
}

// IsFull reports whether no seats remain on the slot.
func (s *Slot) IsFull() bool {
	return s.BookedCount >= s.Capacity
}
