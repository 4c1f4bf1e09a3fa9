package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kishan611/backend-project/internal/model"
)

func bookingRows(t *testing.T, id, slotID, userID uint64, status string) *sqlmock.Rows {
	t.Helper()
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "slot_id", "user_id", "status", "booked_at", "updated_at"}).
		AddRow(id, slotID, userID, status, now, now)
}

func TestHasActive(t *testing.T) {
	ctx := context.Background()
	q := regexp.QuoteMeta(`SELECT 1 FROM bookings WHERE slot_id = ? AND user_id = ? AND status = 'ACTIVE' LIMIT 1`)

	t.Run("active booking exists", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		mock.ExpectQuery(q).WithArgs(uint64(7), uint64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		active, err := repo.HasActive(ctx, 7, 2)
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("no booking", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		mock.ExpectQuery(q).WithArgs(uint64(7), uint64(2)).WillReturnError(sql.ErrNoRows)

		active, err := repo.HasActive(ctx, 7, 2)
		require.NoError(t, err)
		assert.False(t, active)
	})
}

func TestBookingCreateTx(t *testing.T) {
	ctx := context.Background()
	ins := regexp.QuoteMeta(`INSERT INTO bookings (slot_id, user_id, status, booked_at) VALUES (?, ?, 'ACTIVE', UTC_TIMESTAMP())`)
	reactivate := regexp.QuoteMeta(`UPDATE bookings SET status = 'ACTIVE', booked_at = UTC_TIMESTAMP() WHERE slot_id = ? AND user_id = ? AND status = 'CANCELLED'`)
	dupErr := errors.New("Error 1062 (23000): Duplicate entry '7-2' for key 'bookings.uq_slot_user'")

	t.Run("fresh booking inserts a new row", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(ins).WithArgs(uint64(7), uint64(2)).WillReturnResult(sqlmock.NewResult(15, 1))
		mock.ExpectQuery("SELECT .+ FROM bookings WHERE id = ?").WithArgs(uint64(15)).
			WillReturnRows(bookingRows(t, 15, 7, 2, model.BookingStatusActive))

		b, err := repo.CreateTx(ctx, tx, 7, 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), b.ID)
		assert.Equal(t, model.BookingStatusActive, b.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled row is reactivated on unique key hit", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(ins).WithArgs(uint64(7), uint64(2)).WillReturnError(dupErr)
		mock.ExpectExec(reactivate).WithArgs(uint64(7), uint64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT .+ FROM bookings WHERE slot_id = \? AND user_id = \?`).
			WithArgs(uint64(7), uint64(2)).
			WillReturnRows(bookingRows(t, 15, 7, 2, model.BookingStatusActive))

		b, err := repo.CreateTx(ctx, tx, 7, 2)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusActive, b.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active row on unique key hit is a duplicate", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(ins).WithArgs(uint64(7), uint64(2)).WillReturnError(dupErr)
		mock.ExpectExec(reactivate).WithArgs(uint64(7), uint64(2)).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.CreateTx(ctx, tx, 7, 2)
		assert.ErrorIs(t, err, ErrDuplicateBooking)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unrelated insert errors pass through", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(ins).WithArgs(uint64(7), uint64(2)).WillReturnError(errors.New("connection reset"))

		_, err := repo.CreateTx(ctx, tx, 7, 2)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateBooking)
	})
}

func TestCancelTx(t *testing.T) {
	ctx := context.Background()
	q := regexp.QuoteMeta(`UPDATE bookings SET status = 'CANCELLED' WHERE id = ? AND status = 'ACTIVE'`)

	t.Run("flips an active booking", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(q).WithArgs(uint64(15)).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.CancelTx(ctx, tx, 15))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second cancellation is a no-op conflict", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewBookingRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(q).WithArgs(uint64(15)).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.CancelTx(ctx, tx, 15)
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
	})
}

func TestGetByIDForUpdateTx(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewBookingRepo(db)
	tx := beginTx(t, db, mock)
	mock.ExpectQuery("SELECT .+ FROM bookings WHERE id = \\? FOR UPDATE").WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDForUpdateTx(ctx, tx, 99)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestListByUser(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewBookingRepo(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "slot_id", "status", "booked_at", "starts_at", "ends_at", "owner_id", "tags"}).
		AddRow(15, 7, model.BookingStatusActive, now, now.Add(time.Hour), now.Add(2*time.Hour), 1, "yoga")
	mock.ExpectQuery(`JOIN slots s ON s.id = b.slot_id`).
		WithArgs(uint64(2), model.BookingStatusActive).
		WillReturnRows(rows)

	items, err := repo.ListByUser(ctx, 2, model.BookingStatusActive, nil, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, uint64(7), items[0].SlotID)
	assert.Equal(t, []string{"yoga"}, items[0].SlotTags)
}
