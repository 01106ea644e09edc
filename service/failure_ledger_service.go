package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"costpool/events"
	"costpool/models"
)

type failureLedgerService struct {
	uowFactory UnitOfWorkFactory
}

// NewFailureLedgerService creates a new failure ledger service
func NewFailureLedgerService(uowFactory UnitOfWorkFactory) FailureLedgerService {
	return &failureLedgerService{
		uowFactory: uowFactory,
	}
}

// RecordSuccess resets the payer's consecutive-failure count. Suspension is
// not cleared here: a suspended payer stays suspended until an explicit
// re-activation outside this core.
func (s *failureLedgerService) RecordSuccess(ctx context.Context, payerID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	if err := uow.FailureRecordRepository().ResetFailures(ctx, payerID); err != nil {
		return fmt.Errorf("failed to reset failure count: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RecordFailure increments the payer's consecutive-failure count under a
// row lock. The third consecutive failure suspends the payer and cancels
// every active pledge they hold, across all expenses, in the same
// transaction. The failure count is global to the payer, not per expense.
func (s *failureLedgerService) RecordFailure(ctx context.Context, payerID, expenseID uuid.UUID, amount decimal.Decimal, reason string) (*FailureLedgerOutcome, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	// The row lock serializes concurrent failures for the same payer from
	// settlements of unrelated expenses
	record, err := uow.FailureRecordRepository().UpsertForUpdate(ctx, payerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock failure record: %w", err)
	}

	record.ConsecutiveFailures++

	payerEmail := ""
	if payer, err := uow.AccountRepository().GetPayer(ctx, payerID); err != nil {
		return nil, fmt.Errorf("failed to get payer: %w", err)
	} else if payer != nil {
		payerEmail = payer.Email
	}

	uow.EventBus().Publish(events.PaymentFailedEvent{
		PayerID:    payerID,
		PayerEmail: payerEmail,
		ExpenseID:  expenseID,
		Amount:     amount,
		Reason:     reason,
	})

	outcome := &FailureLedgerOutcome{Record: record}

	switch {
	case record.ConsecutiveFailures >= models.SuspensionThreshold && !record.IsSuspended:
		now := time.Now().UTC()
		record.IsSuspended = true
		record.SuspendedAt = &now

		cancelled, err := uow.PledgeRepository().CancelAllActiveByPayer(ctx, payerID)
		if err != nil {
			return nil, fmt.Errorf("failed to cascade-cancel pledges: %w", err)
		}

		outcome.Suspended = true
		outcome.CancelledPledges = cancelled

		for _, pledge := range cancelled {
			uow.EventBus().Publish(events.PledgeCancelledEvent{
				PledgeID:  pledge.ID,
				PayerID:   payerID,
				ExpenseID: pledge.ExpenseID,
				Ceiling:   pledge.Ceiling,
				Cascade:   true,
			})
		}
		uow.EventBus().Publish(events.PayerSuspendedEvent{
			PayerID:             payerID,
			PayerEmail:          payerEmail,
			ConsecutiveFailures: record.ConsecutiveFailures,
			CancelledPledges:    len(cancelled),
		})

		log.WithFields(log.Fields{
			"payerId":          payerID,
			"failures":         record.ConsecutiveFailures,
			"cancelledPledges": len(cancelled),
		}).Warn("Payer suspended after consecutive charge failures")

	case !record.IsSuspended:
		outcome.RemainingAttempts = record.RemainingAttempts()
		uow.EventBus().Publish(events.RetryWarningEvent{
			PayerID:           payerID,
			PayerEmail:        payerEmail,
			ExpenseID:         expenseID,
			RemainingAttempts: outcome.RemainingAttempts,
		})
	}

	if err := uow.FailureRecordRepository().Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update failure record: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return outcome, nil
}

// IsSuspended reports whether the payer is currently suspended
func (s *failureLedgerService) IsSuspended(ctx context.Context, payerID uuid.UUID) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	record, err := uow.FailureRecordRepository().GetByPayer(ctx, payerID)
	if err != nil {
		return false, fmt.Errorf("failed to get failure record: %w", err)
	}

	return record != nil && record.IsSuspended, nil
}
