package sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"costpool/events"
	"costpool/models"
	"costpool/service"
)

// AuditRecorder subscribes to the event bus and appends one audit row per
// event. Recording is best-effort: a failed insert is logged, never
// propagated back into the settlement path.
type AuditRecorder struct {
	repo service.AuditEventRepository
}

// NewAuditRecorder creates an audit recorder backed by the given repository
func NewAuditRecorder(repo service.AuditEventRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

// Register subscribes the recorder to every audited event type
func (r *AuditRecorder) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypePaymentSucceeded, r.handlePaymentSucceeded)
	bus.Subscribe(events.EventTypePaymentFailed, r.handlePaymentFailed)
	bus.Subscribe(events.EventTypeRetryWarning, r.handleRetryWarning)
	bus.Subscribe(events.EventTypePayerSuspended, r.handlePayerSuspended)
	bus.Subscribe(events.EventTypePledgeCancelled, r.handlePledgeCancelled)
	bus.Subscribe(events.EventTypePayoutSent, r.handlePayoutSent)
	bus.Subscribe(events.EventTypePayoutHeld, r.handlePayoutHeld)
	bus.Subscribe(events.EventTypePayoutFailed, r.handlePayoutFailed)
	bus.Subscribe(events.EventTypeWithdrawalScheduled, r.handleWithdrawalScheduled)
	bus.Subscribe(events.EventTypeWithdrawalCompleted, r.handleWithdrawalCompleted)
}

func (r *AuditRecorder) record(ctx context.Context, kind models.AuditKind, subjectID uuid.UUID, expenseID *uuid.UUID, amount *decimal.Decimal, message string) {
	event := &models.AuditEvent{
		Kind:      kind,
		SubjectID: subjectID,
		ExpenseID: expenseID,
		Amount:    amount,
		Message:   message,
	}
	if err := r.repo.Record(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"kind":      kind,
			"subjectId": subjectID,
		}).WithError(err).Error("Failed to record audit event")
	}
}

func (r *AuditRecorder) handlePaymentSucceeded(ctx context.Context, event events.Event) {
	e, ok := event.(events.PaymentSucceededEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindPaymentSucceeded, e.PayerID, &e.ExpenseID, &e.Amount,
		fmt.Sprintf("charged %s (ref %s)", e.Amount, e.Reference))
}

func (r *AuditRecorder) handlePaymentFailed(ctx context.Context, event events.Event) {
	e, ok := event.(events.PaymentFailedEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindPaymentFailed, e.PayerID, &e.ExpenseID, &e.Amount,
		fmt.Sprintf("charge of %s failed: %s", e.Amount, e.Reason))
}

func (r *AuditRecorder) handleRetryWarning(ctx context.Context, event events.Event) {
	e, ok := event.(events.RetryWarningEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindRetryWarning, e.PayerID, &e.ExpenseID, nil,
		fmt.Sprintf("%d attempts remaining before suspension", e.RemainingAttempts))
}

func (r *AuditRecorder) handlePayerSuspended(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayerSuspendedEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindPayerSuspended, e.PayerID, nil, nil,
		fmt.Sprintf("suspended after %d consecutive failures; %d pledges cancelled", e.ConsecutiveFailures, e.CancelledPledges))
}

func (r *AuditRecorder) handlePledgeCancelled(ctx context.Context, event events.Event) {
	e, ok := event.(events.PledgeCancelledEvent)
	if !ok {
		return
	}
	message := "pledge cancelled by backer"
	if e.Cascade {
		message = "pledge cancelled by suspension cascade"
	}
	r.record(ctx, models.AuditKindPledgeCancelled, e.PayerID, &e.ExpenseID, &e.Ceiling, message)
}

func (r *AuditRecorder) handlePayoutSent(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayoutSentEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindPayoutSent, e.PayeeID, &e.ExpenseID, &e.Amount,
		fmt.Sprintf("payout of %s sent (ref %s)", e.Amount, e.Reference))
}

func (r *AuditRecorder) handlePayoutHeld(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayoutHeldEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindPayoutHeld, e.PayeeID, &e.ExpenseID, &e.Amount,
		fmt.Sprintf("payout of %s held: no payout account on file", e.Amount))
}

func (r *AuditRecorder) handlePayoutFailed(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayoutFailedEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindPayoutFailed, e.PayeeID, &e.ExpenseID, &e.Amount,
		fmt.Sprintf("payout of %s failed: %s", e.Amount, e.Reason))
}

func (r *AuditRecorder) handleWithdrawalScheduled(ctx context.Context, event events.Event) {
	e, ok := event.(events.WithdrawalScheduledEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindWithdrawalScheduled, e.ExpenseID, &e.ExpenseID, nil,
		fmt.Sprintf("withdrawal scheduled for %s", e.ScheduledDate))
}

func (r *AuditRecorder) handleWithdrawalCompleted(ctx context.Context, event events.Event) {
	e, ok := event.(events.WithdrawalCompletedEvent)
	if !ok {
		return
	}
	r.record(ctx, models.AuditKindWithdrawalCompleted, e.ExpenseID, &e.ExpenseID, &e.Collected,
		fmt.Sprintf("settlement completed, collected %s", e.Collected))
}
