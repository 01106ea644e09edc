package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PledgeStatus represents the lifecycle state of a pledge
type PledgeStatus string

const (
	PledgeStatusActive    PledgeStatus = "active"
	PledgeStatusSuspended PledgeStatus = "suspended"
	PledgeStatusCancelled PledgeStatus = "cancelled"
)

// Pledge represents a backer's standing commitment to an expense.
// Ceiling is the maximum the backer will ever be charged in one billing
// period; the actual charge is computed by the optimizer each settlement.
type Pledge struct {
	ID                uuid.UUID        `db:"id"`
	PayerID           uuid.UUID        `db:"payer_id"`
	ExpenseID         uuid.UUID        `db:"expense_id"`
	Ceiling           decimal.Decimal  `db:"ceiling"`
	LastChargedAmount *decimal.Decimal `db:"last_charged_amount"`
	Status            PledgeStatus     `db:"status"`
	CreatedAt         time.Time        `db:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at"`
}

// IsActive reports whether the pledge participates in optimization
func (p *Pledge) IsActive() bool {
	return p.Status == PledgeStatusActive
}
