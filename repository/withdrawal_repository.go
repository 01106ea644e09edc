package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"costpool/database"
	"costpool/models"
)

// WithdrawalRepository implements the WithdrawalRepository interface
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

// newWithdrawalRepositoryWithTx creates a new withdrawal repository with a transaction
func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

const withdrawalColumns = `id, expense_id, scheduled_date, period_month, status, collected_amount, completed_at, created_at`

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.ExpenseID,
		&w.ScheduledDate,
		&w.PeriodMonth,
		&w.Status,
		&w.CollectedAmount,
		&w.CompletedAt,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateIfAbsent inserts the withdrawal unless one already exists for the
// same expense and billing period. The uniqueness constraint on
// (expense_id, period_month) makes the check-and-create atomic: two
// concurrent scheduler ticks can never materialize two withdrawals.
func (r *WithdrawalRepository) CreateIfAbsent(ctx context.Context, withdrawal *models.Withdrawal) (bool, error) {
	if withdrawal.Status == "" {
		withdrawal.Status = models.WithdrawalStatusPending
	}
	withdrawal.PeriodMonth = monthOf(withdrawal.ScheduledDate)

	query := `
		INSERT INTO withdrawals (expense_id, scheduled_date, period_month, status, collected_amount)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (expense_id, period_month) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		withdrawal.ExpenseID,
		withdrawal.ScheduledDate,
		withdrawal.PeriodMonth,
		withdrawal.Status,
	).Scan(&withdrawal.ID, &withdrawal.CreatedAt)

	if err == pgx.ErrNoRows {
		// Conflict: a withdrawal already exists for this period
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create withdrawal for expense %s: %w", withdrawal.ExpenseID, err)
	}

	withdrawal.CollectedAmount = decimal.Zero
	return true, nil
}

// GetByID retrieves a withdrawal by its ID
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %s: %w", id, err)
	}

	return w, nil
}

// GetByExpenseAndPeriod returns the withdrawal for an expense in the given
// billing period, or nil
func (r *WithdrawalRepository) GetByExpenseAndPeriod(ctx context.Context, expenseID uuid.UUID, periodMonth time.Time) (*models.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE expense_id = $1 AND period_month = $2
	`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, expenseID, monthOf(periodMonth)))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal for expense %s: %w", expenseID, err)
	}

	return w, nil
}

// GetDuePending returns all pending withdrawals whose scheduled date has
// arrived as of the given day
func (r *WithdrawalRepository) GetDuePending(ctx context.Context, asOf time.Time) ([]*models.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE status = 'pending' AND scheduled_date <= $1
		ORDER BY scheduled_date
	`

	rows, err := r.q.Query(ctx, query, dateOf(asOf))
	if err != nil {
		return nil, fmt.Errorf("failed to get due withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawals: %w", err)
	}

	return withdrawals, nil
}

// Complete marks the withdrawal completed with the collected amount.
// Guarded by status so a completed withdrawal can never be re-opened or
// completed twice.
func (r *WithdrawalRepository) Complete(ctx context.Context, id uuid.UUID, collected decimal.Decimal) error {
	query := `
		UPDATE withdrawals
		SET status = 'completed', collected_amount = $1, completed_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, collected, id)
	if err != nil {
		return fmt.Errorf("failed to complete withdrawal %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return fmt.Errorf("withdrawal %s not found", id)
		}
		return models.ErrWithdrawalCompleted
	}

	return nil
}

// monthOf normalizes a date to the first day of its calendar month
func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// dateOf strips the time-of-day component
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
