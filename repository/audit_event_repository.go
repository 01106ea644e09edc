package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costpool/database"
	"costpool/models"
)

// AuditEventRepository persists the append-only activity log
type AuditEventRepository struct {
	q queryable
}

// NewAuditEventRepository creates a new audit event repository
func NewAuditEventRepository(db *database.DB) *AuditEventRepository {
	return &AuditEventRepository{q: db.Pool}
}

// Record appends one audit event
func (r *AuditEventRepository) Record(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (kind, subject_id, expense_id, amount, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	var amount decimal.NullDecimal
	if event.Amount != nil {
		amount = decimal.NullDecimal{Decimal: *event.Amount, Valid: true}
	}

	err := r.q.QueryRow(ctx, query,
		event.Kind,
		event.SubjectID,
		event.ExpenseID,
		amount,
		event.Message,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record audit event %s: %w", event.Kind, err)
	}

	return nil
}

// GetBySubject returns the most recent audit events for a subject
func (r *AuditEventRepository) GetBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.AuditEvent, error) {
	query := `
		SELECT id, kind, subject_id, expense_id, amount, message, created_at
		FROM audit_events
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit events for %s: %w", subjectID, err)
	}
	defer rows.Close()

	var eventList []*models.AuditEvent
	for rows.Next() {
		var event models.AuditEvent
		var amount decimal.NullDecimal
		err := rows.Scan(
			&event.ID,
			&event.Kind,
			&event.SubjectID,
			&event.ExpenseID,
			&amount,
			&event.Message,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if amount.Valid {
			event.Amount = &amount.Decimal
		}
		eventList = append(eventList, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return eventList, nil
}
