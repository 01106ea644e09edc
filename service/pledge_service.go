package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"costpool/events"
	"costpool/models"
	"costpool/optimizer"
)

type pledgeService struct {
	uowFactory UnitOfWorkFactory
	minPledge  decimal.Decimal
}

// NewPledgeService creates a new pledge service
func NewPledgeService(uowFactory UnitOfWorkFactory, minPledge decimal.Decimal) PledgeService {
	return &pledgeService{
		uowFactory: uowFactory,
		minPledge:  minPledge,
	}
}

// CreatePledge commits a backer to an expense
func (s *pledgeService) CreatePledge(ctx context.Context, payerID, expenseID uuid.UUID, ceiling decimal.Decimal) (*models.Pledge, error) {
	if ceiling.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("pledge ceiling must be positive, got %s", ceiling)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	record, err := uow.FailureRecordRepository().GetByPayer(ctx, payerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check suspension state: %w", err)
	}
	if record != nil && record.IsSuspended {
		return nil, models.ErrPayerSuspended
	}

	expense, err := uow.ExpenseRepository().GetByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	if expense == nil {
		return nil, fmt.Errorf("expense %s not found", expenseID)
	}

	// The pool closes once existing ceilings alone cover the target
	existing, err := uow.PledgeRepository().GetActiveByExpense(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active pledges: %w", err)
	}
	ceilings := make([]decimal.Decimal, len(existing))
	for i, pledge := range existing {
		ceilings[i] = pledge.Ceiling
	}
	if opt := optimizer.Optimize(ceilings, expense.TargetCost, s.minPledge); !opt.PoolOpen {
		return nil, models.ErrPoolClosed
	}

	pledge := &models.Pledge{
		ID:        uuid.New(),
		PayerID:   payerID,
		ExpenseID: expenseID,
		Ceiling:   ceiling,
		Status:    models.PledgeStatusActive,
	}
	if err := uow.PledgeRepository().Create(ctx, pledge); err != nil {
		return nil, fmt.Errorf("failed to create pledge: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"pledgeId":  pledge.ID,
		"payerId":   payerID,
		"expenseId": expenseID,
		"ceiling":   ceiling.String(),
	}).Info("Pledge created")

	return pledge, nil
}

// CancelPledge withdraws a backer's commitment. Cancelling an already
// cancelled pledge is a no-op.
func (s *pledgeService) CancelPledge(ctx context.Context, pledgeID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pledge, err := uow.PledgeRepository().GetByID(ctx, pledgeID)
	if err != nil {
		return fmt.Errorf("failed to get pledge: %w", err)
	}
	if pledge == nil {
		return fmt.Errorf("pledge %s not found", pledgeID)
	}
	if !pledge.IsActive() {
		return nil
	}

	if err := uow.PledgeRepository().Cancel(ctx, pledgeID); err != nil {
		return fmt.Errorf("failed to cancel pledge: %w", err)
	}

	uow.EventBus().Publish(events.PledgeCancelledEvent{
		PledgeID:  pledge.ID,
		PayerID:   pledge.PayerID,
		ExpenseID: pledge.ExpenseID,
		Ceiling:   pledge.Ceiling,
		Cascade:   false,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"pledgeId": pledgeID,
		"payerId":  pledge.PayerID,
	}).Info("Pledge cancelled")

	return nil
}
