package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"costpool/events"
	"costpool/models"
)

func setupScheduler(leadDays int) (WithdrawalScheduler, *MockUnitOfWorkFactory, *MockUnitOfWork, *MockExpenseRepository, *MockWithdrawalRepository, *MockEventPublisher) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockExpenseRepo := new(MockExpenseRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)
	mockPublisher := new(MockEventPublisher)

	mockUoW.SetRepositories(nil, mockExpenseRepo, mockWithdrawalRepo, nil, nil, mockPublisher)

	scheduler := NewWithdrawalScheduler(mockFactory, leadDays)
	return scheduler, mockFactory, mockUoW, mockExpenseRepo, mockWithdrawalRepo, mockPublisher
}

func TestWithdrawalScheduler_CreatesWithdrawalWithLeadTime(t *testing.T) {
	ctx := context.Background()
	scheduler, mockFactory, mockUoW, mockExpenseRepo, mockWithdrawalRepo, mockPublisher := setupScheduler(2)

	expense := &models.Expense{
		ID:            uuid.New(),
		PayeeID:       uuid.New(),
		Name:          "team fileserver",
		TargetCost:    decimal.NewFromInt(40),
		SettlementDay: 15,
	}
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockExpenseRepo.On("GetAllWithActivePledges", ctx).Return([]*models.Expense{expense}, nil)

	// Due the 15th, scheduled 2 days ahead
	mockWithdrawalRepo.On("CreateIfAbsent", ctx, mock.MatchedBy(func(w *models.Withdrawal) bool {
		return w.ExpenseID == expense.ID &&
			w.ScheduledDate.Equal(time.Date(2026, time.March, 13, 0, 0, 0, 0, time.UTC)) &&
			w.Status == models.WithdrawalStatusPending
	})).Return(true, nil)

	mockPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		scheduled, ok := e.(events.WithdrawalScheduledEvent)
		return ok && scheduled.ExpenseID == expense.ID && scheduled.ScheduledDate == "2026-03-13"
	})).Return()

	created, err := scheduler.ScheduleWithdrawals(ctx, now)

	assert.NoError(t, err)
	assert.Equal(t, 1, created)
	mockWithdrawalRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestWithdrawalScheduler_SecondTickIsNoop(t *testing.T) {
	ctx := context.Background()
	scheduler, mockFactory, mockUoW, mockExpenseRepo, mockWithdrawalRepo, mockPublisher := setupScheduler(2)

	expense := &models.Expense{
		ID:            uuid.New(),
		PayeeID:       uuid.New(),
		TargetCost:    decimal.NewFromInt(40),
		SettlementDay: 15,
	}
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockExpenseRepo.On("GetAllWithActivePledges", ctx).Return([]*models.Expense{expense}, nil)
	mockWithdrawalRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*models.Withdrawal")).Return(false, nil)

	created, err := scheduler.ScheduleWithdrawals(ctx, now)

	assert.NoError(t, err)
	assert.Equal(t, 0, created)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestWithdrawalScheduler_OneWithdrawalPerExpense(t *testing.T) {
	ctx := context.Background()
	scheduler, mockFactory, mockUoW, mockExpenseRepo, mockWithdrawalRepo, mockPublisher := setupScheduler(2)

	expenses := []*models.Expense{
		{ID: uuid.New(), TargetCost: decimal.NewFromInt(40), SettlementDay: 10},
		{ID: uuid.New(), TargetCost: decimal.NewFromInt(25), SettlementDay: 20},
		{ID: uuid.New(), TargetCost: decimal.NewFromInt(15), SettlementDay: 28},
	}
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockExpenseRepo.On("GetAllWithActivePledges", ctx).Return(expenses, nil)
	mockWithdrawalRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*models.Withdrawal")).Return(true, nil).Times(3)
	mockPublisher.On("Publish", mock.AnythingOfType("events.WithdrawalScheduledEvent")).Return().Times(3)

	created, err := scheduler.ScheduleWithdrawals(ctx, now)

	assert.NoError(t, err)
	assert.Equal(t, 3, created)
	mockWithdrawalRepo.AssertExpectations(t)
}

func TestWithdrawalScheduler_NoEligibleExpenses(t *testing.T) {
	ctx := context.Background()
	scheduler, mockFactory, mockUoW, mockExpenseRepo, mockWithdrawalRepo, _ := setupScheduler(2)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockExpenseRepo.On("GetAllWithActivePledges", ctx).Return([]*models.Expense{}, nil)

	created, err := scheduler.ScheduleWithdrawals(ctx, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 0, created)
	mockWithdrawalRepo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}
