package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kishan611/backend-project/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func beginTx(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) *sql.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	return tx
}

func slotRows(t *testing.T, id, ownerID uint64, start, end time.Time, capacity, booked uint32, tags string) *sqlmock.Rows {
	t.Helper()
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "owner_id", "starts_at", "ends_at", "capacity", "booked_count", "tags", "created_at", "updated_at"}).
		AddRow(id, ownerID, start, end, capacity, booked, tags, now, now)
}

func TestReserveSeatTx(t *testing.T) {
	ctx := context.Background()
	reserve := regexp.QuoteMeta(`UPDATE slots SET booked_count = booked_count + 1 WHERE id = ? AND booked_count < capacity`)
	exists := regexp.QuoteMeta(`SELECT 1 FROM slots WHERE id = ?`)

	t.Run("claims a free seat", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSlotRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(reserve).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.ReserveSeatTx(ctx, tx, 7)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full slot is rejected", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSlotRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(reserve).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(exists).WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		err := repo.ReserveSeatTx(ctx, tx, 7)
		assert.ErrorIs(t, err, ErrSlotFull)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing slot is distinguished from a full one", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSlotRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(reserve).WithArgs(uint64(404)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(exists).WithArgs(uint64(404)).WillReturnError(sql.ErrNoRows)

		err := repo.ReserveSeatTx(ctx, tx, 404)
		assert.ErrorIs(t, err, ErrSlotNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReleaseSeatTx(t *testing.T) {
	ctx := context.Background()
	release := regexp.QuoteMeta(`UPDATE slots SET booked_count = booked_count - 1 WHERE id = ? AND booked_count > 0`)

	t.Run("returns a counted seat", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSlotRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(release).WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.ReleaseSeatTx(ctx, tx, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decrementing an empty counter fails", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSlotRepo(db)
		tx := beginTx(t, db, mock)
		mock.ExpectExec(release).WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.ReleaseSeatTx(ctx, tx, 3)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSlotRepo(db)
		start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		end := start.Add(time.Hour)
		mock.ExpectQuery("SELECT .+ FROM slots WHERE id = ?").WithArgs(uint64(5)).
			WillReturnRows(slotRows(t, 5, 1, start, end, 10, 4, "yoga,beginner"))

		s, err := repo.GetByID(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), s.ID)
		assert.Equal(t, []string{"yoga", "beginner"}, s.Tags)
		assert.Equal(t, uint32(6), s.AvailableSeats())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewSlotRepo(db)
		mock.ExpectQuery("SELECT .+ FROM slots WHERE id = ?").WithArgs(uint64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, 99)
		assert.ErrorIs(t, err, ErrSlotNotFound)
	})
}

func TestCreateTx(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewSlotRepo(db)
	tx := beginTx(t, db, mock)

	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO slots (owner_id, starts_at, ends_at, capacity, booked_count, tags) VALUES (?, ?, ?, ?, 0, ?)`)).
		WithArgs(uint64(1), "2026-09-01 10:00:00", "2026-09-01 11:00:00", uint32(8), "yoga").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery("SELECT .+ FROM slots WHERE id = ?").WithArgs(uint64(42)).
		WillReturnRows(slotRows(t, 42, 1, start, end, 8, 0, "yoga"))

	s := &model.Slot{OwnerID: 1, StartsAt: start, EndsAt: end, Capacity: 8, Tags: []string{"Yoga", "yoga"}}
	require.NoError(t, repo.CreateTx(ctx, tx, s))
	assert.Equal(t, uint64(42), s.ID)
	assert.Equal(t, uint32(0), s.BookedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOverlappingTx(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewSlotRepo(db)
	tx := beginTx(t, db, mock)

	start := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	end := time.Date(2026, 9, 1, 10, 45, 0, 0, time.UTC)
	existing := slotRows(t, 2, 1,
		time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC), 5, 0, "")
	mock.ExpectQuery(regexp.QuoteMeta(`owner_id = ? AND NOT (ends_at <= ? OR starts_at >= ?)`)).
		WithArgs(uint64(1), "2026-09-01 10:30:00", "2026-09-01 10:45:00").
		WillReturnRows(existing)

	overlaps, err := repo.FindOverlappingTx(ctx, tx, 1, start, end)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, uint64(2), overlaps[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The half-open interval semantics live in the SQL predicate; this
// table pins down which candidate intervals the predicate must treat
// as conflicting with a stored [10:00, 11:00) slot.
func TestOverlapPredicateTable(t *testing.T) {
	storedStart := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	storedEnd := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		start, end time.Time
		conflict   bool
	}{
		{"contained", hm(10, 30), hm(10, 45), true},
		{"overlaps start", hm(9, 30), hm(10, 15), true},
		{"covers entirely", hm(9, 0), hm(12, 0), true},
		{"touches at end", hm(11, 0), hm(12, 0), false},
		{"strictly before", hm(8, 0), hm(9, 0), false},
		{"touches at start", hm(9, 0), hm(10, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// NOT (ends_at <= start OR starts_at >= end), evaluated in Go.
			got := !(storedEnd.Compare(tc.start) <= 0 || storedStart.Compare(tc.end) >= 0)
			assert.Equal(t, tc.conflict, got)
		})
	}
}

func hm(h, m int) time.Time {
	return time.Date(2026, 9, 1, h, m, 0, 0, time.UTC)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	db, mock := newMock(t)
	repo := NewSlotRepo(db)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	f := ListFilter{
		Page:          2,
		Limit:         10,
		From:          &from,
		Tags:          []string{"yoga"},
		AvailableOnly: true,
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM slots`)).
		WithArgs("2026-09-01 00:00:00", "yoga").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(`FIND_IN_SET`).
		WithArgs("2026-09-01 00:00:00", "yoga", 10, 10).
		WillReturnRows(slotRows(t, 9, 1,
			time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 2, 11, 0, 0, 0, time.UTC), 5, 2, "yoga"))

	items, total, err := repo.List(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, items, 1)
	assert.Equal(t, uint64(9), items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagNormalization(t *testing.T) {
	assert.Equal(t, "yoga,beginner", JoinTags([]string{" Yoga", "beginner", "YOGA", ""}))
	assert.Equal(t, []string{"yoga", "beginner"}, SplitTags("yoga, beginner"))
	assert.Equal(t, []string{}, SplitTags(""))
}
