package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/kishan611/backend-project/internal/model"
)

// dbTimeFormat is how DATETIME values are written back to MySQL.
// All timestamps are stored in UTC; reads rely on parseTime=true.
const dbTimeFormat = "2006-01-02 15:04:05"

// SlotRepo manages persistence for slots.  The booked_count column is
// only ever mutated through the conditional statements below so that
// the occupancy counter can never drift from the set of ACTIVE
// bookings, even under concurrent requests for the last seat.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo with the given DB handle.
func NewSlotRepo(db *sql.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.  Use this method to
// obtain a *sql.DB when you need fine-grained transaction control.
func (r *SlotRepo) DB() *sql.DB {
	return r.db
}

const slotColumns = `id, owner_id, starts_at, ends_at, capacity, booked_count, tags, created_at, updated_at`

// scanSlot reads one slots row into a model.Slot.  The tags column is
// stored comma separated and split here.
func scanSlot(row interface{ Scan(...any) error }) (*model.Slot, error) {
	var s model.Slot
	var tags string
	err := row.Scan(&s.ID, &s.OwnerID, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.BookedCount, &tags, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Tags = SplitTags(tags)
	return &s, nil
}

// SplitTags converts the comma separated tags column into a slice.
// Empty input yields an empty (non-nil) slice.
func SplitTags(col string) []string {
	out := []string{}
	for _, t := range strings.Split(col, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinTags normalizes a tag list (trimmed, lowercased, deduplicated)
// and joins it into the comma separated column representation.
func JoinTags(tags []string) string {
	seen := make(map[string]struct{}, len(tags))
	norm := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		norm = append(norm, t)
	}
	return strings.Join(norm, ",")
}

// CreateTx inserts a new slot using the provided transaction.  The
// caller is expected to have run the overlap check on the same
// transaction so that check-then-insert commits as one unit.  On
// success the generated ID and DB-default fields are populated on the
// given Slot.
func (r *SlotRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Slot) error {
	const q = `INSERT INTO slots (owner_id, starts_at, ends_at, capacity, booked_count, tags) VALUES (?, ?, ?, ?, 0, ?)`
	res, err := tx.ExecContext(ctx, q,
		s.OwnerID,
		s.StartsAt.UTC().Format(dbTimeFormat),
		s.EndsAt.UTC().Format(dbTimeFormat),
		s.Capacity,
		JoinTags(s.Tags),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query the inserted row back to obtain booked_count and timestamps.
	sel := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	fresh, err := scanSlot(tx.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// GetByID retrieves a slot by its ID.  It returns ErrSlotNotFound if
// there is no matching row.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetByIDForUpdateTx loads a slot inside the given transaction holding
// a row lock (SELECT ... FOR UPDATE).  While the lock is held no
// concurrent booking can move booked_count, which makes the
// capacity-reduction and deletion guards race-safe against in-flight
// bookings for the same slot.
func (r *SlotRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots WHERE id = ? FOR UPDATE`
	s, err := scanSlot(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return s, nil
}

// FindOverlappingTx finds all slots belonging to ownerID whose interval
// overlaps [start, end).  Two intervals overlap when each starts before
// the other ends; intervals that merely touch at a boundary do not
// conflict.  The query runs on the provided transaction so that the
// caller can commit the check together with the insert or update it
// guards.  It returns an empty slice when no overlaps are found.
func (r *SlotRepo) FindOverlappingTx(ctx context.Context, tx *sql.Tx, ownerID uint64, start, end time.Time) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots
               WHERE owner_id = ? AND NOT (ends_at <= ? OR starts_at >= ?)`
	return r.queryOverlaps(ctx, tx, q, ownerID,
		start.UTC().Format(dbTimeFormat), end.UTC().Format(dbTimeFormat))
}

// FindOverlappingExcludingTx is like FindOverlappingTx but excludes the
// slot with the given ID from the check.  This is used during updates
// to allow a slot to overlap with itself.
func (r *SlotRepo) FindOverlappingExcludingTx(ctx context.Context, tx *sql.Tx, ownerID, excludeID uint64, start, end time.Time) ([]model.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM slots
               WHERE owner_id = ? AND id <> ? AND NOT (ends_at <= ? OR starts_at >= ?)`
	return r.queryOverlaps(ctx, tx, q, ownerID, excludeID,
		start.UTC().Format(dbTimeFormat), end.UTC().Format(dbTimeFormat))
}

func (r *SlotRepo) queryOverlaps(ctx context.Context, tx *sql.Tx, q string, args ...any) ([]model.Slot, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	overlaps := []model.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		overlaps = append(overlaps, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overlaps, nil
}

// ReserveSeatTx atomically claims one seat on the slot.  The increment
// only matches when booked_count is still below capacity, so two
// transactions racing for the last seat cannot both succeed; the loser
// observes zero affected rows.  When nothing matched, a follow-up
// existence check on the same transaction distinguishes a missing slot
// (ErrSlotNotFound) from a full one (ErrSlotFull).
func (r *SlotRepo) ReserveSeatTx(ctx context.Context, tx *sql.Tx, slotID uint64) error {
	const q = `UPDATE slots SET booked_count = booked_count + 1 WHERE id = ? AND booked_count < capacity`
	res, err := tx.ExecContext(ctx, q, slotID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ?`, slotID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return err
	}
	return ErrSlotFull
}

// ReleaseSeatTx returns one seat to the slot.  The guard on
// booked_count > 0 keeps the counter from going negative; the caller
// guarantees the decrement corresponds to exactly one booking that was
// previously counted (an ACTIVE row flipped to CANCELLED in the same
// transaction).  Zero affected rows therefore indicates a broken
// invariant and is surfaced as an error so the transaction rolls back.
func (r *SlotRepo) ReleaseSeatTx(ctx context.Context, tx *sql.Tx, slotID uint64) error {
	const q = `UPDATE slots SET booked_count = booked_count - 1 WHERE id = ? AND booked_count > 0`
	res, err := tx.ExecContext(ctx, q, slotID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return errors.New("release seat matched no row")
	}
	return nil
}

// UpdateTx persists merged slot fields inside the given transaction.
// Callers must hold the row lock via GetByIDForUpdateTx and must have
// validated ownership, the overlap check and the capacity guard before
// calling.  booked_count is deliberately not part of the statement.
func (r *SlotRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Slot) error {
	const q = `UPDATE slots SET starts_at = ?, ends_at = ?, capacity = ?, tags = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		s.StartsAt.UTC().Format(dbTimeFormat),
		s.EndsAt.UTC().Format(dbTimeFormat),
		s.Capacity,
		JoinTags(s.Tags),
		s.ID,
	)
	return err
}

// DeleteTx removes a slot row inside the given transaction.  Callers
// must hold the row lock and must have verified ownership and that
// booked_count is zero.
func (r *SlotRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	return err
}

// ListFilter captures the query surface of the slot listing endpoint.
// Page is 1-based; Limit is capped by the handler.  From/To restrict
// the slot interval, Tags match any of the given labels and
// AvailableOnly keeps only slots with free seats.
type ListFilter struct {
	Page          int
	Limit         int
	From          *time.Time
	To            *time.Time
	Tags          []string
	AvailableOnly bool
}

// List returns a page of slots matching the filter together with the
// total number of matches.  Results are ordered by start time
// ascending.  Available seats are derived by the caller from capacity
// and booked_count; nothing availability-related is persisted.
func (r *SlotRepo) List(ctx context.Context, f ListFilter) ([]model.Slot, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.From != nil {
		where = append(where, "starts_at >= ?")
		args = append(args, f.From.UTC().Format(dbTimeFormat))
	}
	if f.To != nil {
		where = append(where, "ends_at <= ?")
		args = append(args, f.To.UTC().Format(dbTimeFormat))
	}
	if len(f.Tags) > 0 {
		// Any-match over the comma separated tags column.
		ors := make([]string, 0, len(f.Tags))
		for _, t := range f.Tags {
			ors = append(ors, "FIND_IN_SET(?, tags) > 0")
			args = append(args, strings.ToLower(strings.TrimSpace(t)))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if f.AvailableOnly {
		where = append(where, "booked_count < capacity")
	}
	cond := strings.Join(where, " AND ")

	var total int
	countQ := `SELECT COUNT(*) FROM slots WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	q := `SELECT ` + slotColumns + ` FROM slots WHERE ` + cond + ` ORDER BY starts_at ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []model.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
