package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costpool/events"
	"costpool/models"
)

// PledgeRepository defines the interface for pledge data access
type PledgeRepository interface {
	// Create creates a new pledge
	Create(ctx context.Context, pledge *models.Pledge) error

	// GetByID retrieves a pledge by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Pledge, error)

	// GetActiveByExpense returns all active pledges for an expense
	GetActiveByExpense(ctx context.Context, expenseID uuid.UUID) ([]*models.Pledge, error)

	// GetActiveByPayer returns all active pledges belonging to a payer,
	// across every expense they back
	GetActiveByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.Pledge, error)

	// Cancel marks a single pledge cancelled
	Cancel(ctx context.Context, id uuid.UUID) error

	// CancelAllActiveByPayer cancels every active pledge belonging to the
	// payer and returns the pledges that were cancelled
	CancelAllActiveByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.Pledge, error)

	// SetLastChargedAmount caches the most recent computed charge on the pledge
	SetLastChargedAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

// ExpenseRepository defines the interface for expense data access
type ExpenseRepository interface {
	// Create creates a new expense
	Create(ctx context.Context, expense *models.Expense) error

	// GetByID retrieves an expense by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Expense, error)

	// GetAllWithActivePledges returns every expense that has at least one
	// active pledge
	GetAllWithActivePledges(ctx context.Context) ([]*models.Expense, error)
}

// WithdrawalRepository defines the interface for withdrawal data access
type WithdrawalRepository interface {
	// CreateIfAbsent inserts the withdrawal unless one already exists for
	// the same expense and billing period. Returns true when a row was
	// created. The check-and-create is atomic (unique constraint).
	CreateIfAbsent(ctx context.Context, withdrawal *models.Withdrawal) (bool, error)

	// GetByID retrieves a withdrawal by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)

	// GetByExpenseAndPeriod returns the withdrawal for an expense in the
	// given billing period, or nil
	GetByExpenseAndPeriod(ctx context.Context, expenseID uuid.UUID, periodMonth time.Time) (*models.Withdrawal, error)

	// GetDuePending returns all pending withdrawals whose scheduled date
	// has arrived as of the given day
	GetDuePending(ctx context.Context, asOf time.Time) ([]*models.Withdrawal, error)

	// Complete marks the withdrawal completed with the collected amount.
	// Returns models.ErrWithdrawalCompleted if it already reached its
	// terminal state; a withdrawal is never re-opened.
	Complete(ctx context.Context, id uuid.UUID, collected decimal.Decimal) error
}

// FailureRecordRepository defines the interface for per-payer failure state
type FailureRecordRepository interface {
	// GetByPayer returns the payer's failure record, or nil if they have
	// never failed a charge
	GetByPayer(ctx context.Context, payerID uuid.UUID) (*models.FailureRecord, error)

	// UpsertForUpdate creates the record if absent and row-locks it for
	// the remainder of the transaction. This is the mutual-exclusion
	// boundary for concurrent settlements touching the same payer.
	UpsertForUpdate(ctx context.Context, payerID uuid.UUID) (*models.FailureRecord, error)

	// Update persists count and suspension changes
	Update(ctx context.Context, record *models.FailureRecord) error

	// ResetFailures zeroes the consecutive-failure count without touching
	// suspension state; a no-op for payers with no record
	ResetFailures(ctx context.Context, payerID uuid.UUID) error
}

// AccountRepository defines the interface for payer and payee identities
// consumed from the external account system
type AccountRepository interface {
	// CreatePayer creates a payer record
	CreatePayer(ctx context.Context, payer *models.Payer) error

	// CreatePayee creates a payee record
	CreatePayee(ctx context.Context, payee *models.Payee) error

	// GetPayer retrieves a payer by ID
	GetPayer(ctx context.Context, id uuid.UUID) (*models.Payer, error)

	// GetPayee retrieves a payee by ID
	GetPayee(ctx context.Context, id uuid.UUID) (*models.Payee, error)

	// GetPayersByIDs returns the requested payers keyed by ID
	GetPayersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Payer, error)
}

// AuditEventRepository defines the interface for the append-only audit log
type AuditEventRepository interface {
	// Record appends one audit event
	Record(ctx context.Context, event *models.AuditEvent) error

	// GetBySubject returns the most recent audit events for a subject
	GetBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]*models.AuditEvent, error)
}

// ChargeResult is the outcome of one off-session charge attempt
type ChargeResult struct {
	Succeeded bool
	Reason    string
	Reference string
}

// TransferResult is the outcome of one payout transfer attempt
type TransferResult struct {
	Succeeded bool
	Reason    string
	Reference string
}

// PaymentGateway is the abstract payment collaborator. Implementations
// must treat timeouts as per-call failures, never as panics; a failed
// charge for one payer must not disturb any other payer's charge.
type PaymentGateway interface {
	// ChargePayer attempts an off-session charge against the payer's
	// stored payment method. The idempotency key makes retried settlement
	// runs safe against double charging.
	ChargePayer(ctx context.Context, handle models.PaymentHandle, amount decimal.Decimal, idempotencyKey string) (*ChargeResult, error)

	// TransferToPayee forwards net proceeds to the payee's payout account
	TransferToPayee(ctx context.Context, payoutAccountID string, amount decimal.Decimal, metadata map[string]string) (*TransferResult, error)
}

// FailureLedgerOutcome describes what a RecordFailure call did
type FailureLedgerOutcome struct {
	Record            *models.FailureRecord
	Suspended         bool // this call crossed the threshold
	RemainingAttempts int
	CancelledPledges  []*models.Pledge
}

// FailureLedgerService owns per-payer consecutive-failure state and the
// suspend-and-cascade-unpledge transition
type FailureLedgerService interface {
	// RecordSuccess resets the payer's consecutive-failure count. It does
	// not clear an existing suspension; re-activation is an explicit
	// administrative operation outside this core.
	RecordSuccess(ctx context.Context, payerID uuid.UUID) error

	// RecordFailure increments the payer's consecutive-failure count. At
	// the suspension threshold it suspends the payer and cancels every
	// one of their active pledges across all expenses, atomically.
	RecordFailure(ctx context.Context, payerID, expenseID uuid.UUID, amount decimal.Decimal, reason string) (*FailureLedgerOutcome, error)

	// IsSuspended reports whether the payer is currently suspended
	IsSuspended(ctx context.Context, payerID uuid.UUID) (bool, error)
}

// WithdrawalScheduler materializes at most one pending withdrawal per
// expense per billing period
type WithdrawalScheduler interface {
	// ScheduleWithdrawals runs one scheduler tick over all expenses with
	// at least one active pledge and returns how many withdrawals were
	// created. Safe to call any number of times per period.
	ScheduleWithdrawals(ctx context.Context, now time.Time) (int, error)
}

// SettlementService executes due withdrawals: charges backers, maintains
// the failure ledger, and forwards net proceeds to the payee
type SettlementService interface {
	// SettleDue settles every pending withdrawal whose scheduled date has
	// arrived. Per-payer and per-payee failures are converted to events;
	// only infrastructure errors abort the run.
	SettleDue(ctx context.Context, now time.Time) ([]*models.SettlementResult, error)

	// Settle executes one withdrawal to its terminal completed state
	Settle(ctx context.Context, withdrawal *models.Withdrawal) (*models.SettlementResult, error)
}

// PledgeService is the write side of the pledge tuples the core consumes
type PledgeService interface {
	// CreatePledge commits a backer to an expense. Rejects non-positive
	// ceilings, suspended payers, and pools that are already fully funded.
	CreatePledge(ctx context.Context, payerID, expenseID uuid.UUID, ceiling decimal.Decimal) (*models.Pledge, error)

	// CancelPledge withdraws a backer's commitment
	CancelPledge(ctx context.Context, pledgeID uuid.UUID) error
}

// ExpenseService registers expenses and answers payout-readiness queries
type ExpenseService interface {
	// CreateExpense registers a recurring expense owned by the payee.
	// Rejects non-positive target costs and settlement days outside 1..31.
	CreateExpense(ctx context.Context, payeeID uuid.UUID, name string, targetCost decimal.Decimal, settlementDay int) (*models.Expense, error)

	// GetExpense retrieves an expense, or nil
	GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error)

	// PayoutReady reports whether the expense's payee can receive payouts
	PayoutReady(ctx context.Context, expenseID uuid.UUID) (bool, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	PledgeRepository() PledgeRepository
	ExpenseRepository() ExpenseRepository
	WithdrawalRepository() WithdrawalRepository
	FailureRecordRepository() FailureRecordRepository
	AccountRepository() AccountRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
