package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"costpool/database"
	"costpool/models"
)

// PledgeRepository implements the PledgeRepository interface
type PledgeRepository struct {
	q queryable
}

// NewPledgeRepository creates a new pledge repository
func NewPledgeRepository(db *database.DB) *PledgeRepository {
	return &PledgeRepository{q: db.Pool}
}

// newPledgeRepositoryWithTx creates a new pledge repository with a transaction
func newPledgeRepositoryWithTx(tx queryable) *PledgeRepository {
	return &PledgeRepository{q: tx}
}

const pledgeColumns = `id, payer_id, expense_id, ceiling, last_charged_amount, status, created_at, updated_at`

func scanPledge(row pgx.Row) (*models.Pledge, error) {
	var pledge models.Pledge
	var lastCharged decimal.NullDecimal
	err := row.Scan(
		&pledge.ID,
		&pledge.PayerID,
		&pledge.ExpenseID,
		&pledge.Ceiling,
		&lastCharged,
		&pledge.Status,
		&pledge.CreatedAt,
		&pledge.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastCharged.Valid {
		pledge.LastChargedAmount = &lastCharged.Decimal
	}
	return &pledge, nil
}

// Create creates a new pledge
func (r *PledgeRepository) Create(ctx context.Context, pledge *models.Pledge) error {
	if pledge.Status == "" {
		pledge.Status = models.PledgeStatusActive
	}

	query := `
		INSERT INTO pledges (payer_id, expense_id, ceiling, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		pledge.PayerID,
		pledge.ExpenseID,
		pledge.Ceiling,
		pledge.Status,
	).Scan(&pledge.ID, &pledge.CreatedAt, &pledge.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create pledge for payer %s: %w", pledge.PayerID, err)
	}

	return nil
}

// GetByID retrieves a pledge by its ID
func (r *PledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Pledge, error) {
	query := `SELECT ` + pledgeColumns + ` FROM pledges WHERE id = $1`

	pledge, err := scanPledge(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pledge %s: %w", id, err)
	}

	return pledge, nil
}

// GetActiveByExpense returns all active pledges for an expense
func (r *PledgeRepository) GetActiveByExpense(ctx context.Context, expenseID uuid.UUID) ([]*models.Pledge, error) {
	query := `
		SELECT ` + pledgeColumns + `
		FROM pledges
		WHERE expense_id = $1 AND status = 'active'
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active pledges for expense %s: %w", expenseID, err)
	}
	defer rows.Close()

	return collectPledges(rows)
}

// GetActiveByPayer returns all active pledges belonging to a payer
func (r *PledgeRepository) GetActiveByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.Pledge, error) {
	query := `
		SELECT ` + pledgeColumns + `
		FROM pledges
		WHERE payer_id = $1 AND status = 'active'
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query, payerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active pledges for payer %s: %w", payerID, err)
	}
	defer rows.Close()

	return collectPledges(rows)
}

func collectPledges(rows pgx.Rows) ([]*models.Pledge, error) {
	var pledges []*models.Pledge
	for rows.Next() {
		pledge, err := scanPledge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pledge: %w", err)
		}
		pledges = append(pledges, pledge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pledges: %w", err)
	}
	return pledges, nil
}

// Cancel marks a single pledge cancelled
func (r *PledgeRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE pledges
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to cancel pledge %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("pledge %s not found or not active", id)
	}

	return nil
}

// CancelAllActiveByPayer cancels every active pledge belonging to the payer
// and returns the pledges that were cancelled. Runs as a single statement
// so the suspension cascade cannot leave stale active pledges behind.
func (r *PledgeRepository) CancelAllActiveByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.Pledge, error) {
	query := `
		UPDATE pledges
		SET status = 'cancelled', updated_at = NOW()
		WHERE payer_id = $1 AND status = 'active'
		RETURNING ` + pledgeColumns

	rows, err := r.q.Query(ctx, query, payerID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel pledges for payer %s: %w", payerID, err)
	}
	defer rows.Close()

	return collectPledges(rows)
}

// SetLastChargedAmount caches the most recent computed charge on the pledge
func (r *PledgeRepository) SetLastChargedAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE pledges
		SET last_charged_amount = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to set last charged amount for pledge %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("pledge %s not found", id)
	}

	return nil
}
