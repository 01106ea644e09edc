package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus represents the state of a settlement attempt
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
)

// Withdrawal represents one settlement attempt for one expense in one
// billing period. At most one withdrawal exists per expense per calendar
// month of its scheduled date; this is enforced by a database uniqueness
// constraint, not application code.
//
// CollectedAmount is filled in on completion and may be less than the
// expense's target cost under partial charge failure. A completed
// withdrawal is never re-opened.
type Withdrawal struct {
	ID              uuid.UUID        `db:"id"`
	ExpenseID       uuid.UUID        `db:"expense_id"`
	ScheduledDate   time.Time        `db:"scheduled_date"`
	PeriodMonth     time.Time        `db:"period_month"`
	Status          WithdrawalStatus `db:"status"`
	CollectedAmount decimal.Decimal  `db:"collected_amount"`
	CompletedAt     *time.Time       `db:"completed_at"`
	CreatedAt       time.Time        `db:"created_at"`
}

// SettlementResult summarizes one executed settlement (returned to the caller)
type SettlementResult struct {
	WithdrawalID uuid.UUID
	ExpenseID    uuid.UUID
	Collected    decimal.Decimal
	Fees         decimal.Decimal
	Net          decimal.Decimal
	Charged      int
	Failed       int
	Skipped      int
	PayoutState  PayoutState
}

// PayoutState describes what happened to the payee-side transfer
type PayoutState string

const (
	PayoutStateSent   PayoutState = "sent"
	PayoutStateHeld   PayoutState = "held"
	PayoutStateFailed PayoutState = "failed"
	PayoutStateNone   PayoutState = "none"
)
