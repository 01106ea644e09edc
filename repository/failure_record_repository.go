package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"costpool/database"
	"costpool/models"
)

// FailureRecordRepository implements the FailureRecordRepository interface
type FailureRecordRepository struct {
	q queryable
}

// NewFailureRecordRepository creates a new failure record repository
func NewFailureRecordRepository(db *database.DB) *FailureRecordRepository {
	return &FailureRecordRepository{q: db.Pool}
}

// newFailureRecordRepositoryWithTx creates a new failure record repository with a transaction
func newFailureRecordRepositoryWithTx(tx queryable) *FailureRecordRepository {
	return &FailureRecordRepository{q: tx}
}

// GetByPayer returns the payer's failure record, or nil if they have never
// failed a charge
func (r *FailureRecordRepository) GetByPayer(ctx context.Context, payerID uuid.UUID) (*models.FailureRecord, error) {
	query := `
		SELECT payer_id, consecutive_failures, is_suspended, suspended_at, updated_at
		FROM failure_records
		WHERE payer_id = $1
	`

	var record models.FailureRecord
	err := r.q.QueryRow(ctx, query, payerID).Scan(
		&record.PayerID,
		&record.ConsecutiveFailures,
		&record.IsSuspended,
		&record.SuspendedAt,
		&record.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failure record for payer %s: %w", payerID, err)
	}

	return &record, nil
}

// UpsertForUpdate creates the record if absent and row-locks it for the
// remainder of the transaction. Concurrent settlements recording outcomes
// for the same payer serialize on this lock, so the read-increment-write
// and the suspension cascade cannot interleave.
func (r *FailureRecordRepository) UpsertForUpdate(ctx context.Context, payerID uuid.UUID) (*models.FailureRecord, error) {
	insert := `
		INSERT INTO failure_records (payer_id)
		VALUES ($1)
		ON CONFLICT (payer_id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, insert, payerID); err != nil {
		return nil, fmt.Errorf("failed to upsert failure record for payer %s: %w", payerID, err)
	}

	query := `
		SELECT payer_id, consecutive_failures, is_suspended, suspended_at, updated_at
		FROM failure_records
		WHERE payer_id = $1
		FOR UPDATE
	`

	var record models.FailureRecord
	err := r.q.QueryRow(ctx, query, payerID).Scan(
		&record.PayerID,
		&record.ConsecutiveFailures,
		&record.IsSuspended,
		&record.SuspendedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock failure record for payer %s: %w", payerID, err)
	}

	return &record, nil
}

// Update persists count and suspension changes
func (r *FailureRecordRepository) Update(ctx context.Context, record *models.FailureRecord) error {
	query := `
		UPDATE failure_records
		SET consecutive_failures = $1, is_suspended = $2, suspended_at = $3, updated_at = NOW()
		WHERE payer_id = $4
	`

	result, err := r.q.Exec(ctx, query,
		record.ConsecutiveFailures,
		record.IsSuspended,
		record.SuspendedAt,
		record.PayerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update failure record for payer %s: %w", record.PayerID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failure record for payer %s not found", record.PayerID)
	}

	return nil
}

// ResetFailures zeroes the consecutive-failure count without touching
// suspension state. Payers who have never failed have no record; that is
// not an error.
func (r *FailureRecordRepository) ResetFailures(ctx context.Context, payerID uuid.UUID) error {
	query := `
		UPDATE failure_records
		SET consecutive_failures = 0, updated_at = NOW()
		WHERE payer_id = $1
	`

	if _, err := r.q.Exec(ctx, query, payerID); err != nil {
		return fmt.Errorf("failed to reset failures for payer %s: %w", payerID, err)
	}

	return nil
}
