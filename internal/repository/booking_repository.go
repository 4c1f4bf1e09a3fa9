package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/kishan611/backend-project/internal/model"
)

// BookingRepo provides data access to the bookings table.  A booking
// is one user's claim on one seat of one slot.  The table carries a
// unique key on (slot_id, user_id); that constraint, not the handler's
// fast-path lookup, is the authoritative duplicate guard.  Booking
// rows are never deleted: cancellation flips status to CANCELLED and a
// later booking by the same user reuses the row.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB for transaction control.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, slot_id, user_id, status, booked_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.UserID, &b.Status, &b.BookedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// HasActive reports whether the user already holds an ACTIVE booking
// on the slot.  It runs outside any transaction: the book handler uses
// it to reject guaranteed-duplicate requests cheaply before touching
// the contended slot row.  The unique key still backstops the race
// where a duplicate slips past this check.
func (r *BookingRepo) HasActive(ctx context.Context, slotID, userID uint64) (bool, error) {
	const q = `SELECT 1 FROM bookings WHERE slot_id = ? AND user_id = ? AND status = 'ACTIVE' LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, q, slotID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts an ACTIVE booking for (slotID, userID) within the
// provided transaction.  When the unique key rejects the insert, a
// previously cancelled row for the pair is reactivated instead; if the
// existing row is still ACTIVE the method returns ErrDuplicateBooking
// and the caller must roll back the seat it reserved.  On success the
// populated booking row is returned.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, slotID, userID uint64) (*model.Booking, error) {
	const ins = `INSERT INTO bookings (slot_id, user_id, status, booked_at) VALUES (?, ?, 'ACTIVE', UTC_TIMESTAMP())`
	res, err := tx.ExecContext(ctx, ins, slotID, userID)
	if err == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		return r.getTx(ctx, tx, uint64(id))
	}
	if !strings.Contains(strings.ToLower(err.Error()), "1062") {
		return nil, err
	}
	// Unique key hit: the pair already has a row. Reactivate it when
	// cancelled, otherwise report the duplicate.
	const upd = `UPDATE bookings SET status = 'ACTIVE', booked_at = UTC_TIMESTAMP() WHERE slot_id = ? AND user_id = ? AND status = 'CANCELLED'`
	ures, err := tx.ExecContext(ctx, upd, slotID, userID)
	if err != nil {
		return nil, err
	}
	n, err := ures.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, ErrDuplicateBooking
	}
	sel := `SELECT ` + bookingColumns + ` FROM bookings WHERE slot_id = ? AND user_id = ?`
	return scanBooking(tx.QueryRowContext(ctx, sel, slotID, userID))
}

func (r *BookingRepo) getTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	sel := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(tx.QueryRowContext(ctx, sel, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// GetByIDForUpdateTx loads a booking inside the given transaction
// holding a row lock.  Two concurrent cancellations of the same
// booking serialize here, so exactly one of them observes ACTIVE and
// decrements the slot counter.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	sel := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, sel, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// CancelTx flips an ACTIVE booking to CANCELLED within the provided
// transaction.  The status predicate keeps the statement one-shot even
// if a caller skipped the locked read: zero affected rows means the
// booking was already cancelled.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE bookings SET status = 'CANCELLED' WHERE id = ? AND status = 'ACTIVE'`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrAlreadyCancelled
	}
	return nil
}

// BookingDetail joins a booking with the slot it references.  It is
// returned by ListByUser for display to customers.
type BookingDetail struct {
	ID           uint64    `json:"id"`
	SlotID       uint64    `json:"slot_id"`
	Status       string    `json:"status"`
	BookedAt     time.Time `json:"booked_at"`
	SlotStartsAt time.Time `json:"slot_starts_at"`
	SlotEndsAt   time.Time `json:"slot_ends_at"`
	SlotOwnerID  uint64    `json:"slot_owner_id"`
	SlotTags     []string  `json:"slot_tags"`
}

// ListByUser returns the user's bookings joined with slot data,
// newest first.  Status restricts to ACTIVE or CANCELLED when set;
// from/to restrict the slot interval.  When no bookings exist an
// empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, status string, from, to *time.Time) ([]BookingDetail, error) {
	q := `SELECT b.id, b.slot_id, b.status, b.booked_at,
                     s.starts_at, s.ends_at, s.owner_id, s.tags
              FROM bookings b
              JOIN slots s ON s.id = b.slot_id
              WHERE b.user_id = ?`
	args := []any{userID}
	if status != "" {
		q += ` AND b.status = ?`
		args = append(args, status)
	}
	if from != nil {
		q += ` AND s.starts_at >= ?`
		args = append(args, from.UTC().Format(dbTimeFormat))
	}
	if to != nil {
		q += ` AND s.ends_at <= ?`
		args = append(args, to.UTC().Format(dbTimeFormat))
	}
	q += ` ORDER BY b.booked_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := []BookingDetail{}
	for rows.Next() {
		var d BookingDetail
		var tags string
		if err := rows.Scan(&d.ID, &d.SlotID, &d.Status, &d.BookedAt,
			&d.SlotStartsAt, &d.SlotEndsAt, &d.SlotOwnerID, &tags); err != nil {
			return nil, err
		}
		d.SlotTags = SplitTags(tags)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
