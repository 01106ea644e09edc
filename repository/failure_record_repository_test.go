package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costpool/repository/testutil"
)

func TestFailureRecordRepository_UpsertForUpdate(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	accountRepo := NewAccountRepository(testDB.DB)
	payer := testutil.CreateTestPayer("flaky")
	require.NoError(t, accountRepo.CreatePayer(ctx, payer))

	t.Run("created lazily on first failure", func(t *testing.T) {
		repo := NewFailureRecordRepository(testDB.DB)

		record, err := repo.GetByPayer(ctx, payer.ID)
		require.NoError(t, err)
		assert.Nil(t, record)

		err = testDB.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
			txRepo := newFailureRecordRepositoryWithTx(tx)
			record, err := txRepo.UpsertForUpdate(ctx, payer.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, 0, record.ConsecutiveFailures)
			assert.False(t, record.IsSuspended)

			record.ConsecutiveFailures++
			return txRepo.Update(ctx, record)
		})
		require.NoError(t, err)

		record, err = repo.GetByPayer(ctx, payer.ID)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 1, record.ConsecutiveFailures)
	})

	t.Run("reset zeroes count only", func(t *testing.T) {
		repo := NewFailureRecordRepository(testDB.DB)

		err := testDB.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
			txRepo := newFailureRecordRepositoryWithTx(tx)
			record, err := txRepo.UpsertForUpdate(ctx, payer.ID)
			if err != nil {
				return err
			}
			record.ConsecutiveFailures = 3
			record.IsSuspended = true
			return txRepo.Update(ctx, record)
		})
		require.NoError(t, err)

		require.NoError(t, repo.ResetFailures(ctx, payer.ID))

		record, err := repo.GetByPayer(ctx, payer.ID)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 0, record.ConsecutiveFailures)
		assert.True(t, record.IsSuspended, "reset must not clear suspension")
	})

	t.Run("reset is a noop without a record", func(t *testing.T) {
		repo := NewFailureRecordRepository(testDB.DB)

		clean := testutil.CreateTestPayer("clean")
		require.NoError(t, accountRepo.CreatePayer(ctx, clean))

		require.NoError(t, repo.ResetFailures(ctx, clean.ID))

		record, err := repo.GetByPayer(ctx, clean.ID)
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}
