// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingCreatedEvent is published after a booking transaction commits.
// It carries enough information for downstream consumers to log,
// notify, or feed analytics without querying the primary database.
type BookingCreatedEvent struct {
	BookingID      uint64   `json:"booking_id"`
	SlotID         uint64   `json:"slot_id"`
	UserID         uint64   `json:"user_id"`
	SlotOwnerID    uint64   `json:"slot_owner_id"`
	StartsAt       string   `json:"starts_at"`
	EndsAt         string   `json:"ends_at"`
	Tags           []string `json:"tags"`
	AvailableSeats uint32   `json:"available_seats"`
	BookedAt       string   `json:"booked_at"`
}

// BookingCancelledEvent is published after a cancellation commits and
// the seat has been returned to the slot.
type BookingCancelledEvent struct {
	BookingID      uint64 `json:"booking_id"`
	SlotID         uint64 `json:"slot_id"`
	UserID         uint64 `json:"user_id"`
	AvailableSeats uint32 `json:"available_seats"`
	CancelledAt    string `json:"cancelled_at"`
}
