package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kishan611/backend-project/internal/model"
	qu "github.com/kishan611/backend-project/internal/queue"
	"github.com/kishan611/backend-project/internal/repository"
	queue_publisher "github.com/kishan611/backend-project/internal/service"
)

// BookingHandler implements the booking and cancellation protocols.
//
// Book takes the seat with a conditional increment before inserting the
// booking row, so the counter can never exceed capacity no matter how
// many requests race.  Cancel locks the booking row first, so a
// cancellation can never release a seat twice.  Both run entirely
// inside one transaction; events are published only after commit.
type BookingHandler struct {
	SlotRepo    *repository.SlotRepo
	BookingRepo *repository.BookingRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(slotRepo *repository.SlotRepo, bookingRepo *repository.BookingRepo) *BookingHandler {
	if slotRepo == nil || bookingRepo == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{SlotRepo: slotRepo, BookingRepo: bookingRepo}
}

// bookingResp is the JSON shape of a newly created booking.
type bookingResp struct {
	ID       uint64 `json:"id"`
	SlotID   uint64 `json:"slot_id"`
	Status   string `json:"status"`
	BookedAt string `json:"booked_at"`
}

// Book handles POST /v1/slots/:id/book.
//
// The cheap duplicate probe runs outside the transaction so repeat
// clicks are rejected without touching the slot row.  The unique key
// on (slot_id, user_id) remains the authoritative guard: a race that
// slips past the probe surfaces as ErrDuplicateBooking from the
// insert, and the seat taken by the conditional increment rolls back
// with the transaction.
func (h *BookingHandler) Book(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	ctx := c.Request().Context()

	active, err := h.BookingRepo.HasActive(ctx, slotID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check existing bookings"})
	}
	if active {
		return c.JSON(http.StatusConflict, echo.Map{"error": "you already have an active booking for this slot"})
	}

	tx, err := h.SlotRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.SlotRepo.ReserveSeatTx(ctx, tx, slotID); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		case errors.Is(err, repository.ErrSlotFull):
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot is fully booked"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not reserve seat"})
		}
	}

	booking, err := h.BookingRepo.CreateTx(ctx, tx, slotID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateBooking) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "you already have an active booking for this slot"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create booking"})
	}

	// Read the slot inside the transaction for the event payload; the
	// increment above already reflects this booking.
	slot, err := h.SlotRepo.GetByIDForUpdateTx(ctx, tx, slotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slot"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	_ = queue_publisher.PublishBookingCreated(ctx, qu.BookingCreatedEvent{
		BookingID:      booking.ID,
		SlotID:         slot.ID,
		UserID:         userID,
		SlotOwnerID:    slot.OwnerID,
		StartsAt:       slot.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:         slot.EndsAt.UTC().Format(time.RFC3339),
		Tags:           slot.Tags,
		AvailableSeats: slot.AvailableSeats(),
		BookedAt:       booking.BookedAt.UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, bookingResp{
		ID:       booking.ID,
		SlotID:   booking.SlotID,
		Status:   booking.Status,
		BookedAt: booking.BookedAt.UTC().Format(time.RFC3339),
	})
}

// Cancel handles DELETE /v1/bookings/:id.  Only the booking's owner
// may cancel it, and a booking can be cancelled exactly once.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()

	tx, err := h.BookingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	booking, err := h.BookingRepo.GetByIDForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	if booking.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if booking.Status == model.BookingStatusCancelled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already cancelled"})
	}

	if err := h.BookingRepo.CancelTx(ctx, tx, bookingID); err != nil {
		if errors.Is(err, repository.ErrAlreadyCancelled) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking already cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not cancel booking"})
	}
	if err := h.SlotRepo.ReleaseSeatTx(ctx, tx, booking.SlotID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not release seat"})
	}

	slot, err := h.SlotRepo.GetByIDForUpdateTx(ctx, tx, booking.SlotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slot"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	_ = queue_publisher.PublishBookingCancelled(ctx, qu.BookingCancelledEvent{
		BookingID:      bookingID,
		SlotID:         booking.SlotID,
		UserID:         userID,
		AvailableSeats: slot.AvailableSeats(),
		CancelledAt:    time.Now().UTC().Format(time.RFC3339),
	})

	return c.NoContent(http.StatusNoContent)
}

// ListMyBookings handles GET /v1/my-bookings with optional status and
// from/to filters.  Results are joined with their slot so clients get
// the interval and tags without a second round trip.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	status := c.QueryParam("status")
	if status != "" && status != model.BookingStatusActive && status != model.BookingStatusCancelled {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be ACTIVE or CANCELLED"})
	}
	var from, to *time.Time
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
		}
		from = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
		}
		to = &t
	}

	items, err := h.BookingRepo.ListByUser(c.Request().Context(), userID, status, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
