package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePaymentSucceeded    EventType = "payment_succeeded"
	EventTypePaymentFailed       EventType = "payment_failed"
	EventTypeRetryWarning        EventType = "retry_warning"
	EventTypePayerSuspended      EventType = "payer_suspended"
	EventTypePledgeCancelled     EventType = "pledge_cancelled"
	EventTypePayoutSent          EventType = "payout_sent"
	EventTypePayoutHeld          EventType = "payout_held"
	EventTypePayoutFailed        EventType = "payout_failed"
	EventTypeWithdrawalScheduled EventType = "withdrawal_scheduled"
	EventTypeWithdrawalCompleted EventType = "withdrawal_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// PaymentSucceededEvent represents a successful off-session charge
type PaymentSucceededEvent struct {
	PayerID    uuid.UUID
	PayerEmail string
	ExpenseID  uuid.UUID
	Amount     decimal.Decimal
	Reference  string
}

func (e PaymentSucceededEvent) Type() EventType { return EventTypePaymentSucceeded }

// PaymentFailedEvent represents a declined or timed-out charge
type PaymentFailedEvent struct {
	PayerID    uuid.UUID
	PayerEmail string
	ExpenseID  uuid.UUID
	Amount     decimal.Decimal
	Reason     string
}

func (e PaymentFailedEvent) Type() EventType { return EventTypePaymentFailed }

// RetryWarningEvent is emitted when a charge fails below the suspension
// threshold; RemainingAttempts counts how many more consecutive failures
// the payer can incur before suspension
type RetryWarningEvent struct {
	PayerID           uuid.UUID
	PayerEmail        string
	ExpenseID         uuid.UUID
	RemainingAttempts int
}

func (e RetryWarningEvent) Type() EventType { return EventTypeRetryWarning }

// PayerSuspendedEvent is emitted when a payer crosses the suspension
// threshold; every one of their active pledges is cancelled in the same
// transaction
type PayerSuspendedEvent struct {
	PayerID             uuid.UUID
	PayerEmail          string
	ConsecutiveFailures int
	CancelledPledges    int
}

func (e PayerSuspendedEvent) Type() EventType { return EventTypePayerSuspended }

// PledgeCancelledEvent is emitted once per pledge cancelled, whether by
// the backer or by suspension cascade
type PledgeCancelledEvent struct {
	PledgeID  uuid.UUID
	PayerID   uuid.UUID
	ExpenseID uuid.UUID
	Ceiling   decimal.Decimal
	Cascade   bool
}

func (e PledgeCancelledEvent) Type() EventType { return EventTypePledgeCancelled }

// PayoutSentEvent represents a successful transfer of net proceeds
type PayoutSentEvent struct {
	PayeeID    uuid.UUID
	PayeeEmail string
	ExpenseID  uuid.UUID
	Amount     decimal.Decimal
	Reference  string
}

func (e PayoutSentEvent) Type() EventType { return EventTypePayoutSent }

// PayoutHeldEvent is emitted when the payee has no payout account; funds
// are tracked as owed but not transferred
type PayoutHeldEvent struct {
	PayeeID    uuid.UUID
	PayeeEmail string
	ExpenseID  uuid.UUID
	Amount     decimal.Decimal
}

func (e PayoutHeldEvent) Type() EventType { return EventTypePayoutHeld }

// PayoutFailedEvent is terminal for the cycle and requires manual
// reconciliation; already-collected charges are not rolled back
type PayoutFailedEvent struct {
	PayeeID    uuid.UUID
	PayeeEmail string
	ExpenseID  uuid.UUID
	Amount     decimal.Decimal
	Reason     string
}

func (e PayoutFailedEvent) Type() EventType { return EventTypePayoutFailed }

// WithdrawalScheduledEvent is emitted when the scheduler materializes a
// pending withdrawal for a billing period
type WithdrawalScheduledEvent struct {
	WithdrawalID  uuid.UUID
	ExpenseID     uuid.UUID
	ScheduledDate string
}

func (e WithdrawalScheduledEvent) Type() EventType { return EventTypeWithdrawalScheduled }

// WithdrawalCompletedEvent is emitted when a settlement cycle concludes,
// regardless of how many individual charges succeeded
type WithdrawalCompletedEvent struct {
	WithdrawalID uuid.UUID
	ExpenseID    uuid.UUID
	Collected    decimal.Decimal
}

func (e WithdrawalCompletedEvent) Type() EventType { return EventTypeWithdrawalCompleted }

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"panic":     r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// A transactional event bus for holding pending events coupled to the Unit
// of Work. Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Events outlive the transaction context that produced them
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
