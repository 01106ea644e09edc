package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditKind classifies entries in the append-only audit log
type AuditKind string

const (
	AuditKindPaymentSucceeded    AuditKind = "payment_succeeded"
	AuditKindPaymentFailed       AuditKind = "payment_failed"
	AuditKindRetryWarning        AuditKind = "retry_warning"
	AuditKindPayerSuspended      AuditKind = "payer_suspended"
	AuditKindPledgeCancelled     AuditKind = "pledge_cancelled"
	AuditKindPayoutSent          AuditKind = "payout_sent"
	AuditKindPayoutHeld          AuditKind = "payout_held"
	AuditKindPayoutFailed        AuditKind = "payout_failed"
	AuditKindWithdrawalScheduled AuditKind = "withdrawal_scheduled"
	AuditKindWithdrawalCompleted AuditKind = "withdrawal_completed"
)

// AuditEvent is one row of the append-only activity log, keyed by the
// subject (payer or payee) it concerns
type AuditEvent struct {
	ID        int64            `db:"id"`
	Kind      AuditKind        `db:"kind"`
	SubjectID uuid.UUID        `db:"subject_id"`
	ExpenseID *uuid.UUID       `db:"expense_id"`
	Amount    *decimal.Decimal `db:"amount"`
	Message   string           `db:"message"`
	CreatedAt time.Time        `db:"created_at"`
}
