package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kishan611/backend-project/internal/model"
	"github.com/kishan611/backend-project/internal/repository"
)

// SlotHandler implements the slot lifecycle: create, list, get, update
// and delete.  Creation and time-affecting updates run the overlap
// check on the same transaction that commits the change, so two
// conflicting intervals by the same owner cannot both slip through.
// Capacity reductions and deletions take the slot row lock first,
// which serializes them against in-flight bookings.
type SlotHandler struct {
	SlotRepo *repository.SlotRepo
}

// NewSlotHandler constructs a SlotHandler.  The repository must be non-nil.
func NewSlotHandler(slotRepo *repository.SlotRepo) *SlotHandler {
	if slotRepo == nil {
		panic("nil repository passed to NewSlotHandler")
	}
	return &SlotHandler{SlotRepo: slotRepo}
}

// slotResp is the JSON shape of a slot.  AvailableSeats is always
// derived from capacity and booked_count at read time.
type slotResp struct {
	ID             uint64   `json:"id"`
	OwnerID        uint64   `json:"owner_id"`
	StartsAt       string   `json:"starts_at"`
	EndsAt         string   `json:"ends_at"`
	Capacity       uint32   `json:"capacity"`
	BookedCount    uint32   `json:"booked_count"`
	AvailableSeats uint32   `json:"available_seats"`
	Tags           []string `json:"tags"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toSlotResp(s *model.Slot) slotResp {
	return slotResp{
		ID:             s.ID,
		OwnerID:        s.OwnerID,
		StartsAt:       s.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:         s.EndsAt.UTC().Format(time.RFC3339),
		Capacity:       s.Capacity,
		BookedCount:    s.BookedCount,
		AvailableSeats: s.AvailableSeats(),
		Tags:           s.Tags,
		CreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func conflictList(overlaps []model.Slot) []slotResp {
	out := make([]slotResp, 0, len(overlaps))
	for i := range overlaps {
		out = append(out, toSlotResp(&overlaps[i]))
	}
	return out
}

// CreateSlot handles POST /v1/slots.  It validates the interval and
// capacity, runs the overlap check against the owner's other slots and
// inserts the new slot with booked_count = 0.  Check and insert share
// one transaction.
func (h *SlotHandler) CreateSlot(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		StartsAt string   `json:"starts_at"`
		EndsAt   string   `json:"ends_at"`
		Capacity uint32   `json:"capacity"`
		Tags     []string `json:"tags"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.StartsAt) == "" || strings.TrimSpace(body.EndsAt) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at and ends_at are required"})
	}
	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(body.StartsAt))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at format"})
	}
	endTime, err := time.Parse(time.RFC3339, strings.TrimSpace(body.EndsAt))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ends_at format"})
	}
	if !endTime.After(startTime) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	if body.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be at least 1"})
	}

	ctx := c.Request().Context()
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

	overlaps, err := h.SlotRepo.FindOverlappingTx(ctx, tx, ownerID, startTime, endTime)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check existing slots"})
	}
	if len(overlaps) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":    "slot interval overlaps with an existing slot",
			"overlaps": conflictList(overlaps),
		})
	}

	slot := &model.Slot{
		OwnerID:  ownerID,
		StartsAt: startTime,
		EndsAt:   endTime,
		Capacity: body.Capacity,
		Tags:     body.Tags,
	}
	if err := h.SlotRepo.CreateTx(ctx, tx, slot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create slot"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, toSlotResp(slot))
}

// ListSlots handles GET /v1/slots.  It supports page/limit pagination,
// a from/to interval filter, tag filtering (any match) and an
// available_only predicate.
func (h *SlotHandler) ListSlots(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	f := repository.ListFilter{Page: 1, Limit: 20}
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
		}
		f.Page = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		f.Limit = n
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
		}
		f.To = &t
	}
	if v := c.QueryParam("tags"); v != "" {
		f.Tags = repository.SplitTags(strings.ToLower(v))
	}
	if v := c.QueryParam("available_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid available_only"})
		}
		f.AvailableOnly = b
	}

	items, total, err := h.SlotRepo.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slots"})
	}
	resp := make([]slotResp, 0, len(items))
	for i := range items {
		resp = append(resp, toSlotResp(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": resp,
		"page":  f.Page,
		"limit": f.Limit,
		"total": total,
	})
}

// GetSlot handles GET /v1/slots/:id.
func (h *SlotHandler) GetSlot(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	slot, err := h.SlotRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slot"})
	}
	return c.JSON(http.StatusOK, toSlotResp(slot))
}

// UpdateSlot handles PUT/PATCH /v1/slots/:id.  All fields are
// optional; the effective interval after merging is re-checked for
// overlaps (excluding the slot itself) and a capacity below the
// current booked_count is rejected.  The slot row is locked for the
// duration of the transaction so the occupancy the guards observe
// cannot move underneath them.
func (h *SlotHandler) UpdateSlot(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		StartsAt *string   `json:"starts_at"`
		EndsAt   *string   `json:"ends_at"`
		Capacity *uint32   `json:"capacity"`
		Tags     *[]string `json:"tags"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
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

	cur, err := h.SlotRepo.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slot"})
	}
	if cur.OwnerID != ownerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	// Merge requested changes over the current state.
	start, end := cur.StartsAt, cur.EndsAt
	timesChanged := false
	if body.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*body.StartsAt))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at format"})
		}
		start = t
		timesChanged = true
	}
	if body.EndsAt != nil {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*body.EndsAt))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ends_at format"})
		}
		end = t
		timesChanged = true
	}
	if !end.After(start) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}

	capacity := cur.Capacity
	if body.Capacity != nil {
		if *body.Capacity < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be at least 1"})
		}
		if *body.Capacity < cur.BookedCount {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":        "capacity below current booked count",
				"booked_count": cur.BookedCount,
			})
		}
		capacity = *body.Capacity
	}

	if timesChanged {
		overlaps, err := h.SlotRepo.FindOverlappingExcludingTx(ctx, tx, ownerID, id, start, end)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check existing slots"})
		}
		if len(overlaps) > 0 {
			return c.JSON(http.StatusConflict, echo.Map{
				"error":    "slot interval overlaps with an existing slot",
				"overlaps": conflictList(overlaps),
			})
		}
	}

	cur.StartsAt = start
	cur.EndsAt = end
	cur.Capacity = capacity
	if body.Tags != nil {
		cur.Tags = *body.Tags
	}
	if err := h.SlotRepo.UpdateTx(ctx, tx, cur); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update slot"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	fresh, err := h.SlotRepo.GetByID(ctx, id)
	if err != nil {
		// fallback: return the merged state if the re-read fails
		return c.JSON(http.StatusOK, toSlotResp(cur))
	}
	return c.JSON(http.StatusOK, toSlotResp(fresh))
}

// DeleteSlot handles DELETE /v1/slots/:id.  A slot with ACTIVE
// bookings cannot be removed; the row lock prevents a concurrent
// booking from claiming a seat between the check and the delete.
func (h *SlotHandler) DeleteSlot(c echo.Context) error {
	ownerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx := c.Request().Context()
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

	cur, err := h.SlotRepo.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load slot"})
	}
	if cur.OwnerID != ownerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if cur.BookedCount > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":        "slot has active bookings",
			"booked_count": cur.BookedCount,
		})
	}
	if err := h.SlotRepo.DeleteTx(ctx, tx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}
