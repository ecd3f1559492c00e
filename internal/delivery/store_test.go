package delivery

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
)

func TestStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("configured", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT charge, updated_at FROM delivery_charge WHERE id = 1`)).
			WillReturnRows(sqlmock.NewRows([]string{"charge", "updated_at"}).AddRow(49.0, now))

		c, err := NewStore(db).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Charge{Charge: 49, Set: true, UpdatedAt: now}, c)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unset reads as zero", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM delivery_charge`)).WillReturnError(sql.ErrNoRows)

		c, err := NewStore(db).Get(ctx)
		require.NoError(t, err)
		assert.False(t, c.Set)
		assert.Zero(t, c.Charge)
	})

	t.Run("db error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`FROM delivery_charge`)).WillReturnError(errors.New("conn reset"))

		_, err = NewStore(db).Get(ctx)
		assert.ErrorContains(t, err, "select delivery charge")
	})
}

func TestStoreSet(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (id) DO UPDATE SET charge = EXCLUDED.charge`)).
			WithArgs(60.0).
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		c, err := NewStore(db).Set(ctx, 60)
		require.NoError(t, err)
		assert.Equal(t, 60.0, c.Charge)
		assert.True(t, c.Set)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)

		_, err = NewStore(db).Set(ctx, bad)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}
