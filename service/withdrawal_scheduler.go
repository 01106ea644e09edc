package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"costpool/events"
	"costpool/models"
)

type withdrawalScheduler struct {
	uowFactory UnitOfWorkFactory
	leadDays   int
}

// NewWithdrawalScheduler creates a new withdrawal scheduler
func NewWithdrawalScheduler(uowFactory UnitOfWorkFactory, leadDays int) WithdrawalScheduler {
	return &withdrawalScheduler{
		uowFactory: uowFactory,
		leadDays:   leadDays,
	}
}

// ScheduleWithdrawals materializes a pending withdrawal for every expense
// with at least one active pledge that has none yet for the upcoming
// billing period. Amounts are not fixed here: the pledge set can change
// between scheduling and execution, so the executor recomputes them.
//
// The atomic check-and-create in the repository makes duplicated or
// retried ticks harmless.
func (s *withdrawalScheduler) ScheduleWithdrawals(ctx context.Context, now time.Time) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	expenses, err := uow.ExpenseRepository().GetAllWithActivePledges(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load expenses: %w", err)
	}

	created := 0
	for _, expense := range expenses {
		dueDate := NextSettlementDate(now, expense.SettlementDay)
		scheduledDate := ScheduledDate(dueDate, s.leadDays)

		withdrawal := &models.Withdrawal{
			ExpenseID:     expense.ID,
			ScheduledDate: scheduledDate,
			Status:        models.WithdrawalStatusPending,
		}

		ok, err := uow.WithdrawalRepository().CreateIfAbsent(ctx, withdrawal)
		if err != nil {
			return 0, fmt.Errorf("failed to schedule withdrawal for expense %s: %w", expense.ID, err)
		}
		if !ok {
			continue // already scheduled for this period
		}

		created++
		uow.EventBus().Publish(events.WithdrawalScheduledEvent{
			WithdrawalID:  withdrawal.ID,
			ExpenseID:     expense.ID,
			ScheduledDate: scheduledDate.Format("2006-01-02"),
		})

		log.WithFields(log.Fields{
			"expenseId":     expense.ID,
			"withdrawalId":  withdrawal.ID,
			"scheduledDate": scheduledDate.Format("2006-01-02"),
		}).Info("Scheduled withdrawal")
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}
