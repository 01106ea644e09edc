package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"costpool/models"
)

type settlementFixture struct {
	service        SettlementService
	factory        *MockUnitOfWorkFactory
	uow            *MockUnitOfWork
	pledgeRepo     *MockPledgeRepository
	expenseRepo    *MockExpenseRepository
	withdrawalRepo *MockWithdrawalRepository
	accountRepo    *MockAccountRepository
	publisher      *MockEventPublisher
	gateway        *MockPaymentGateway
	ledger         *MockFailureLedgerService
}

func setupSettlement() *settlementFixture {
	f := &settlementFixture{
		factory:        new(MockUnitOfWorkFactory),
		uow:            new(MockUnitOfWork),
		pledgeRepo:     new(MockPledgeRepository),
		expenseRepo:    new(MockExpenseRepository),
		withdrawalRepo: new(MockWithdrawalRepository),
		accountRepo:    new(MockAccountRepository),
		publisher:      new(MockEventPublisher),
		gateway:        new(MockPaymentGateway),
		ledger:         new(MockFailureLedgerService),
	}
	f.uow.SetRepositories(f.pledgeRepo, f.expenseRepo, f.withdrawalRepo, nil, f.accountRepo, f.publisher)
	f.service = NewSettlementService(f.factory, f.gateway, f.ledger, SettlementConfig{
		MinPledge:           decimal.NewFromInt(1),
		ProcessorFeePercent: decimal.NewFromFloat(0.029),
		ProcessorFeeFixed:   decimal.NewFromFloat(0.30),
		Workers:             2,
	})
	return f
}

// settlementWorld wires a payee, three backers with equal ceilings, and an
// overfunded pool so the optimizer charges each backer the same amount
func (f *settlementFixture) settlementWorld(ctx context.Context) (*models.Withdrawal, *models.Expense, []*models.Payer) {
	payee := &models.Payee{
		ID:              uuid.New(),
		Email:           "payee@example.com",
		PayoutOnboarded: true,
	}
	account := "acct_123"
	payee.PayoutAccountID = &account

	expense := &models.Expense{
		ID:            uuid.New(),
		PayeeID:       payee.ID,
		Name:          "shared vpn",
		TargetCost:    decimal.NewFromInt(30),
		SettlementDay: 15,
	}
	withdrawal := &models.Withdrawal{
		ID:            uuid.New(),
		ExpenseID:     expense.ID,
		ScheduledDate: time.Date(2026, time.March, 13, 0, 0, 0, 0, time.UTC),
		Status:        models.WithdrawalStatusPending,
	}

	var pledges []*models.Pledge
	var payers []*models.Payer
	payerMap := make(map[uuid.UUID]*models.Payer)
	for i := 0; i < 3; i++ {
		payer := testPayer(uuid.New())
		pledge := &models.Pledge{
			ID:        uuid.New(),
			PayerID:   payer.ID,
			ExpenseID: expense.ID,
			Ceiling:   decimal.NewFromInt(15),
			Status:    models.PledgeStatusActive,
		}
		payers = append(payers, payer)
		pledges = append(pledges, pledge)
		payerMap[payer.ID] = payer
	}

	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Commit").Return(nil)
	f.uow.On("Rollback").Return(nil)

	f.expenseRepo.On("GetByID", ctx, expense.ID).Return(expense, nil)
	f.pledgeRepo.On("GetActiveByExpense", ctx, expense.ID).Return(pledges, nil)
	f.accountRepo.On("GetPayersByIDs", ctx, mock.Anything).Return(payerMap, nil)
	f.accountRepo.On("GetPayee", ctx, payee.ID).Return(payee, nil)

	return withdrawal, expense, payers
}

func amountEq(expected decimal.Decimal) interface{} {
	return mock.MatchedBy(func(actual decimal.Decimal) bool {
		return actual.Equal(expected)
	})
}

func TestSettlementService_Settle_AllChargesSucceed(t *testing.T) {
	ctx := context.Background()
	f := setupSettlement()
	withdrawal, _, payers := f.settlementWorld(ctx)

	// 45 pledged against a 30 target: each backer pays 10
	share := decimal.NewFromInt(10)
	for _, payer := range payers {
		f.gateway.On("ChargePayer", mock.Anything, payer.Handle(), amountEq(share), mock.AnythingOfType("string")).
			Return(&ChargeResult{Succeeded: true, Reference: "pi_" + payer.ID.String()[:8]}, nil)
		f.ledger.On("RecordSuccess", ctx, payer.ID).Return(nil)
	}
	f.pledgeRepo.On("SetLastChargedAmount", ctx, mock.AnythingOfType("uuid.UUID"), amountEq(share)).Return(nil).Times(3)

	// 30 collected, fees 30*0.029 + 3*0.30 = 1.77, net 28.23
	f.gateway.On("TransferToPayee", mock.Anything, "acct_123", amountEq(decimal.NewFromFloat(28.23)), mock.Anything).
		Return(&TransferResult{Succeeded: true, Reference: "tr_1"}, nil)

	f.withdrawalRepo.On("Complete", ctx, withdrawal.ID, amountEq(decimal.NewFromInt(30))).Return(nil)
	f.publisher.On("Publish", mock.Anything).Return()

	result, err := f.service.Settle(ctx, withdrawal)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.Charged)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, result.Collected.Equal(decimal.NewFromInt(30)))
	assert.True(t, result.Fees.Equal(decimal.NewFromFloat(1.77)))
	assert.True(t, result.Net.Equal(decimal.NewFromFloat(28.23)))
	assert.Equal(t, models.PayoutStateSent, result.PayoutState)

	f.gateway.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.withdrawalRepo.AssertExpectations(t)
}

func TestSettlementService_Settle_OneFailureDoesNotDisturbOthers(t *testing.T) {
	ctx := context.Background()
	f := setupSettlement()
	withdrawal, expense, payers := f.settlementWorld(ctx)

	share := decimal.NewFromInt(10)
	failing := payers[1]
	for _, payer := range payers {
		if payer.ID == failing.ID {
			f.gateway.On("ChargePayer", mock.Anything, payer.Handle(), amountEq(share), mock.AnythingOfType("string")).
				Return(&ChargeResult{Succeeded: false, Reason: "card_declined"}, nil)
			continue
		}
		f.gateway.On("ChargePayer", mock.Anything, payer.Handle(), amountEq(share), mock.AnythingOfType("string")).
			Return(&ChargeResult{Succeeded: true, Reference: "pi_ok"}, nil)
		f.ledger.On("RecordSuccess", ctx, payer.ID).Return(nil)
	}
	f.ledger.On("RecordFailure", ctx, failing.ID, expense.ID, amountEq(share), "card_declined").
		Return(&FailureLedgerOutcome{RemainingAttempts: 2}, nil)

	f.pledgeRepo.On("SetLastChargedAmount", ctx, mock.AnythingOfType("uuid.UUID"), amountEq(share)).Return(nil).Times(2)

	// 20 collected, fees 20*0.029 + 2*0.30 = 1.18, net 18.82
	f.gateway.On("TransferToPayee", mock.Anything, "acct_123", amountEq(decimal.NewFromFloat(18.82)), mock.Anything).
		Return(&TransferResult{Succeeded: true, Reference: "tr_1"}, nil)

	f.withdrawalRepo.On("Complete", ctx, withdrawal.ID, amountEq(decimal.NewFromInt(20))).Return(nil)
	f.publisher.On("Publish", mock.Anything).Return()

	result, err := f.service.Settle(ctx, withdrawal)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Charged)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.Collected.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, models.PayoutStateSent, result.PayoutState)

	f.gateway.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func TestSettlementService_Settle_SkipsPayerWithoutPaymentMethod(t *testing.T) {
	ctx := context.Background()
	f := setupSettlement()
	withdrawal, _, payers := f.settlementWorld(ctx)

	share := decimal.NewFromInt(10)
	skipped := payers[2]
	skipped.CustomerID = nil
	skipped.PaymentMethodID = nil

	for _, payer := range payers[:2] {
		f.gateway.On("ChargePayer", mock.Anything, payer.Handle(), amountEq(share), mock.AnythingOfType("string")).
			Return(&ChargeResult{Succeeded: true, Reference: "pi_ok"}, nil)
		f.ledger.On("RecordSuccess", ctx, payer.ID).Return(nil)
	}
	f.pledgeRepo.On("SetLastChargedAmount", ctx, mock.AnythingOfType("uuid.UUID"), amountEq(share)).Return(nil).Times(2)

	f.gateway.On("TransferToPayee", mock.Anything, "acct_123", mock.Anything, mock.Anything).
		Return(&TransferResult{Succeeded: true, Reference: "tr_1"}, nil)
	f.withdrawalRepo.On("Complete", ctx, withdrawal.ID, amountEq(decimal.NewFromInt(20))).Return(nil)
	f.publisher.On("Publish", mock.Anything).Return()

	result, err := f.service.Settle(ctx, withdrawal)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Charged)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// A missing payment method is not a payment failure
	f.ledger.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertNumberOfCalls(t, "ChargePayer", 2)
}

func TestSettlementService_Settle_PayoutHeldWithoutAccount(t *testing.T) {
	ctx := context.Background()
	f := setupSettlement()
	withdrawal, _, payers := f.settlementWorld(ctx)

	share := decimal.NewFromInt(10)
	for _, payer := range payers {
		f.gateway.On("ChargePayer", mock.Anything, payer.Handle(), amountEq(share), mock.AnythingOfType("string")).
			Return(&ChargeResult{Succeeded: true, Reference: "pi_ok"}, nil)
		f.ledger.On("RecordSuccess", ctx, payer.ID).Return(nil)
	}
	f.pledgeRepo.On("SetLastChargedAmount", ctx, mock.AnythingOfType("uuid.UUID"), amountEq(share)).Return(nil)

	f.withdrawalRepo.On("Complete", ctx, withdrawal.ID, amountEq(decimal.NewFromInt(30))).Return(nil)
	f.publisher.On("Publish", mock.Anything).Return()

	// Replace the payee expectation with one lacking a payout account:
	// funds are held, the withdrawal still completes
	f.accountRepo.ExpectedCalls = nil
	f.accountRepo.On("GetPayersByIDs", ctx, mock.Anything).Return(payerMapOf(payers), nil)
	f.accountRepo.On("GetPayee", ctx, mock.Anything).Return(&models.Payee{
		ID:    uuid.New(),
		Email: "payee@example.com",
	}, nil)

	result, err := f.service.Settle(ctx, withdrawal)

	assert.NoError(t, err)
	assert.Equal(t, models.PayoutStateHeld, result.PayoutState)
	f.gateway.AssertNotCalled(t, "TransferToPayee", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.withdrawalRepo.AssertExpectations(t)
}

func TestSettlementService_Settle_PayoutFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	f := setupSettlement()
	withdrawal, _, payers := f.settlementWorld(ctx)

	share := decimal.NewFromInt(10)
	for _, payer := range payers {
		f.gateway.On("ChargePayer", mock.Anything, payer.Handle(), amountEq(share), mock.AnythingOfType("string")).
			Return(&ChargeResult{Succeeded: true, Reference: "pi_ok"}, nil)
		f.ledger.On("RecordSuccess", ctx, payer.ID).Return(nil)
	}
	f.pledgeRepo.On("SetLastChargedAmount", ctx, mock.AnythingOfType("uuid.UUID"), amountEq(share)).Return(nil)

	f.gateway.On("TransferToPayee", mock.Anything, "acct_123", mock.Anything, mock.Anything).
		Return(&TransferResult{Succeeded: false, Reason: "account_closed"}, nil)

	f.withdrawalRepo.On("Complete", ctx, withdrawal.ID, amountEq(decimal.NewFromInt(30))).Return(nil)
	f.publisher.On("Publish", mock.Anything).Return()

	result, err := f.service.Settle(ctx, withdrawal)

	assert.NoError(t, err)
	assert.Equal(t, models.PayoutStateFailed, result.PayoutState)
	assert.True(t, result.Collected.Equal(decimal.NewFromInt(30)))
	f.withdrawalRepo.AssertExpectations(t)
}

func TestSettlementService_Settle_NothingCollected(t *testing.T) {
	ctx := context.Background()
	f := setupSettlement()
	withdrawal, expense, payers := f.settlementWorld(ctx)

	share := decimal.NewFromInt(10)
	for _, payer := range payers {
		f.gateway.On("ChargePayer", mock.Anything, payer.Handle(), amountEq(share), mock.AnythingOfType("string")).
			Return(&ChargeResult{Succeeded: false, Reason: "card_declined"}, nil)
		f.ledger.On("RecordFailure", ctx, payer.ID, expense.ID, amountEq(share), "card_declined").
			Return(&FailureLedgerOutcome{RemainingAttempts: 2}, nil)
	}

	f.withdrawalRepo.On("Complete", ctx, withdrawal.ID, amountEq(decimal.Zero)).Return(nil)
	f.publisher.On("Publish", mock.Anything).Return()

	result, err := f.service.Settle(ctx, withdrawal)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Charged)
	assert.Equal(t, 3, result.Failed)
	assert.True(t, result.Fees.IsZero())
	assert.Equal(t, models.PayoutStateNone, result.PayoutState)
	f.gateway.AssertNotCalled(t, "TransferToPayee", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_SettleDue_NoDueWithdrawals(t *testing.T) {
	ctx := context.Background()
	f := setupSettlement()

	now := time.Date(2026, time.March, 13, 6, 0, 0, 0, time.UTC)

	f.factory.On("Create").Return(f.uow)
	f.uow.On("Begin", ctx).Return(nil)
	f.uow.On("Rollback").Return(nil)
	f.withdrawalRepo.On("GetDuePending", ctx, now).Return([]*models.Withdrawal{}, nil)

	results, err := f.service.SettleDue(ctx, now)

	assert.NoError(t, err)
	assert.Empty(t, results)
	f.uow.AssertNotCalled(t, "Commit")
}

func payerMapOf(payers []*models.Payer) map[uuid.UUID]*models.Payer {
	m := make(map[uuid.UUID]*models.Payer, len(payers))
	for _, payer := range payers {
		m[payer.ID] = payer
	}
	return m
}
