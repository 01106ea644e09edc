package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"costpool/models"
)

type expenseService struct {
	uowFactory UnitOfWorkFactory
}

// NewExpenseService creates a new expense service
func NewExpenseService(uowFactory UnitOfWorkFactory) ExpenseService {
	return &expenseService{
		uowFactory: uowFactory,
	}
}

// CreateExpense registers a recurring expense owned by the payee
func (s *expenseService) CreateExpense(ctx context.Context, payeeID uuid.UUID, name string, targetCost decimal.Decimal, settlementDay int) (*models.Expense, error) {
	if targetCost.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("target cost must be positive, got %s", targetCost)
	}
	if settlementDay < 1 || settlementDay > 31 {
		return nil, fmt.Errorf("settlement day must be within 1..31, got %d", settlementDay)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	payee, err := uow.AccountRepository().GetPayee(ctx, payeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payee: %w", err)
	}
	if payee == nil {
		return nil, fmt.Errorf("payee %s not found", payeeID)
	}

	expense := &models.Expense{
		PayeeID:       payeeID,
		Name:          name,
		TargetCost:    targetCost,
		SettlementDay: settlementDay,
	}
	if err := uow.ExpenseRepository().Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"expenseId":     expense.ID,
		"payeeId":       payeeID,
		"targetCost":    targetCost.String(),
		"settlementDay": settlementDay,
	}).Info("Expense created")

	return expense, nil
}

// GetExpense retrieves an expense, or nil
func (s *expenseService) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	expense, err := uow.ExpenseRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// PayoutReady reports whether the expense's payee can receive payouts.
// Settlements for a not-ready payee still run; their proceeds are held.
func (s *expenseService) PayoutReady(ctx context.Context, expenseID uuid.UUID) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	expense, err := uow.ExpenseRepository().GetByID(ctx, expenseID)
	if err != nil {
		return false, fmt.Errorf("failed to get expense: %w", err)
	}
	if expense == nil {
		return false, fmt.Errorf("expense %s not found", expenseID)
	}

	payee, err := uow.AccountRepository().GetPayee(ctx, expense.PayeeID)
	if err != nil {
		return false, fmt.Errorf("failed to get payee: %w", err)
	}

	return payee != nil && payee.CanReceivePayouts(), nil
}
