package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRefresh(t *testing.T) {
	ctx := context.Background()
	cols := []string{"user_id", "expires_at", "revoked_at"}

	t.Run("valid token returns its owner", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTokenRepo(db)
		mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").
			WithArgs("hash").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(42, time.Now().UTC().Add(time.Hour), nil))

		uid, err := repo.ValidateRefresh(ctx, "hash")
		require.NoError(t, err)
		assert.Equal(t, uint64(42), uid)
	})

	t.Run("revoked token reports reuse with the owner", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTokenRepo(db)
		mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").
			WithArgs("hash").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(42, time.Now().UTC().Add(time.Hour), time.Now().UTC()))

		uid, err := repo.ValidateRefresh(ctx, "hash")
		assert.ErrorIs(t, err, ErrTokenReused)
		assert.Equal(t, uint64(42), uid)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewTokenRepo(db)
		mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").
			WithArgs("hash").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(42, time.Now().UTC().Add(-time.Minute), nil))

		_, err := repo.ValidateRefresh(ctx, "hash")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
