package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"costpool/database"
	"costpool/models"
)

// AccountRepository implements the AccountRepository interface. Payer and
// payee identities are written by the external account system; this core
// mostly reads them.
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

// CreatePayer creates a payer record
func (r *AccountRepository) CreatePayer(ctx context.Context, payer *models.Payer) error {
	query := `
		INSERT INTO payers (display_name, email, customer_id, payment_method_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		payer.DisplayName,
		payer.Email,
		payer.CustomerID,
		payer.PaymentMethodID,
	).Scan(&payer.ID, &payer.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payer %q: %w", payer.DisplayName, err)
	}

	return nil
}

// CreatePayee creates a payee record
func (r *AccountRepository) CreatePayee(ctx context.Context, payee *models.Payee) error {
	query := `
		INSERT INTO payees (display_name, email, payout_account_id, payout_onboarded)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		payee.DisplayName,
		payee.Email,
		payee.PayoutAccountID,
		payee.PayoutOnboarded,
	).Scan(&payee.ID, &payee.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payee %q: %w", payee.DisplayName, err)
	}

	return nil
}

// GetPayer retrieves a payer by ID
func (r *AccountRepository) GetPayer(ctx context.Context, id uuid.UUID) (*models.Payer, error) {
	query := `
		SELECT id, display_name, email, customer_id, payment_method_id, created_at
		FROM payers
		WHERE id = $1
	`

	var payer models.Payer
	err := r.q.QueryRow(ctx, query, id).Scan(
		&payer.ID,
		&payer.DisplayName,
		&payer.Email,
		&payer.CustomerID,
		&payer.PaymentMethodID,
		&payer.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payer %s: %w", id, err)
	}

	return &payer, nil
}

// GetPayee retrieves a payee by ID
func (r *AccountRepository) GetPayee(ctx context.Context, id uuid.UUID) (*models.Payee, error) {
	query := `
		SELECT id, display_name, email, payout_account_id, payout_onboarded, created_at
		FROM payees
		WHERE id = $1
	`

	var payee models.Payee
	err := r.q.QueryRow(ctx, query, id).Scan(
		&payee.ID,
		&payee.DisplayName,
		&payee.Email,
		&payee.PayoutAccountID,
		&payee.PayoutOnboarded,
		&payee.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payee %s: %w", id, err)
	}

	return &payee, nil
}

// GetPayersByIDs returns the requested payers keyed by ID
func (r *AccountRepository) GetPayersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Payer, error) {
	payers := make(map[uuid.UUID]*models.Payer, len(ids))
	if len(ids) == 0 {
		return payers, nil
	}

	query := `
		SELECT id, display_name, email, customer_id, payment_method_id, created_at
		FROM payers
		WHERE id = ANY($1)
	`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get payers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payer models.Payer
		err := rows.Scan(
			&payer.ID,
			&payer.DisplayName,
			&payer.Email,
			&payer.CustomerID,
			&payer.PaymentMethodID,
			&payer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payer: %w", err)
		}
		payers[payer.ID] = &payer
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payers: %w", err)
	}

	return payers, nil
}
