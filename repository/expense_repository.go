package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"costpool/database"
	"costpool/models"
)

// ExpenseRepository implements the ExpenseRepository interface
type ExpenseRepository struct {
	q queryable
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *database.DB) *ExpenseRepository {
	return &ExpenseRepository{q: db.Pool}
}

// newExpenseRepositoryWithTx creates a new expense repository with a transaction
func newExpenseRepositoryWithTx(tx queryable) *ExpenseRepository {
	return &ExpenseRepository{q: tx}
}

// Create creates a new expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	query := `
		INSERT INTO expenses (payee_id, name, target_cost, settlement_day)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		expense.PayeeID,
		expense.Name,
		expense.TargetCost,
		expense.SettlementDay,
	).Scan(&expense.ID, &expense.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create expense %q: %w", expense.Name, err)
	}

	return nil
}

// GetByID retrieves an expense by its ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	query := `
		SELECT id, payee_id, name, target_cost, settlement_day, created_at
		FROM expenses
		WHERE id = $1
	`

	var expense models.Expense
	err := r.q.QueryRow(ctx, query, id).Scan(
		&expense.ID,
		&expense.PayeeID,
		&expense.Name,
		&expense.TargetCost,
		&expense.SettlementDay,
		&expense.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense %s: %w", id, err)
	}

	return &expense, nil
}

// GetAllWithActivePledges returns every expense that has at least one
// active pledge
func (r *ExpenseRepository) GetAllWithActivePledges(ctx context.Context) ([]*models.Expense, error) {
	query := `
		SELECT DISTINCT e.id, e.payee_id, e.name, e.target_cost, e.settlement_day, e.created_at
		FROM expenses e
		JOIN pledges p ON p.expense_id = e.id AND p.status = 'active'
		ORDER BY e.created_at
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses with active pledges: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		var expense models.Expense
		err := rows.Scan(
			&expense.ID,
			&expense.PayeeID,
			&expense.Name,
			&expense.TargetCost,
			&expense.SettlementDay,
			&expense.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, &expense)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return expenses, nil
}
