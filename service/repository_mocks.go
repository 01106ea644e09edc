package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"costpool/events"
	"costpool/models"
)

// MockPledgeRepository is a mock implementation of PledgeRepository
type MockPledgeRepository struct {
	mock.Mock
}

func (m *MockPledgeRepository) Create(ctx context.Context, pledge *models.Pledge) error {
	args := m.Called(ctx, pledge)
	return args.Error(0)
}

func (m *MockPledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Pledge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pledge), args.Error(1)
}

func (m *MockPledgeRepository) GetActiveByExpense(ctx context.Context, expenseID uuid.UUID) ([]*models.Pledge, error) {
	args := m.Called(ctx, expenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Pledge), args.Error(1)
}

func (m *MockPledgeRepository) GetActiveByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.Pledge, error) {
	args := m.Called(ctx, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Pledge), args.Error(1)
}

func (m *MockPledgeRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPledgeRepository) CancelAllActiveByPayer(ctx context.Context, payerID uuid.UUID) ([]*models.Pledge, error) {
	args := m.Called(ctx, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Pledge), args.Error(1)
}

func (m *MockPledgeRepository) SetLastChargedAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

// MockExpenseRepository is a mock implementation of ExpenseRepository
type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseRepository) GetAllWithActivePledges(ctx context.Context) ([]*models.Expense, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Expense), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) CreateIfAbsent(ctx context.Context, withdrawal *models.Withdrawal) (bool, error) {
	args := m.Called(ctx, withdrawal)
	return args.Bool(0), args.Error(1)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) GetByExpenseAndPeriod(ctx context.Context, expenseID uuid.UUID, periodMonth time.Time) (*models.Withdrawal, error) {
	args := m.Called(ctx, expenseID, periodMonth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) GetDuePending(ctx context.Context, asOf time.Time) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) Complete(ctx context.Context, id uuid.UUID, collected decimal.Decimal) error {
	args := m.Called(ctx, id, collected)
	return args.Error(0)
}

// MockFailureRecordRepository is a mock implementation of FailureRecordRepository
type MockFailureRecordRepository struct {
	mock.Mock
}

func (m *MockFailureRecordRepository) GetByPayer(ctx context.Context, payerID uuid.UUID) (*models.FailureRecord, error) {
	args := m.Called(ctx, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FailureRecord), args.Error(1)
}

func (m *MockFailureRecordRepository) UpsertForUpdate(ctx context.Context, payerID uuid.UUID) (*models.FailureRecord, error) {
	args := m.Called(ctx, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FailureRecord), args.Error(1)
}

func (m *MockFailureRecordRepository) Update(ctx context.Context, record *models.FailureRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockFailureRecordRepository) ResetFailures(ctx context.Context, payerID uuid.UUID) error {
	args := m.Called(ctx, payerID)
	return args.Error(0)
}

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) CreatePayer(ctx context.Context, payer *models.Payer) error {
	args := m.Called(ctx, payer)
	return args.Error(0)
}

func (m *MockAccountRepository) CreatePayee(ctx context.Context, payee *models.Payee) error {
	args := m.Called(ctx, payee)
	return args.Error(0)
}

func (m *MockAccountRepository) GetPayer(ctx context.Context, id uuid.UUID) (*models.Payer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payer), args.Error(1)
}

func (m *MockAccountRepository) GetPayee(ctx context.Context, id uuid.UUID) (*models.Payee, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payee), args.Error(1)
}

func (m *MockAccountRepository) GetPayersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Payer, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*models.Payer), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockPaymentGateway is a mock implementation of PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) ChargePayer(ctx context.Context, handle models.PaymentHandle, amount decimal.Decimal, idempotencyKey string) (*ChargeResult, error) {
	args := m.Called(ctx, handle, amount, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChargeResult), args.Error(1)
}

func (m *MockPaymentGateway) TransferToPayee(ctx context.Context, payoutAccountID string, amount decimal.Decimal, metadata map[string]string) (*TransferResult, error) {
	args := m.Called(ctx, payoutAccountID, amount, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransferResult), args.Error(1)
}

// MockFailureLedgerService is a mock implementation of FailureLedgerService
type MockFailureLedgerService struct {
	mock.Mock
}

func (m *MockFailureLedgerService) RecordSuccess(ctx context.Context, payerID uuid.UUID) error {
	args := m.Called(ctx, payerID)
	return args.Error(0)
}

func (m *MockFailureLedgerService) RecordFailure(ctx context.Context, payerID, expenseID uuid.UUID, amount decimal.Decimal, reason string) (*FailureLedgerOutcome, error) {
	args := m.Called(ctx, payerID, expenseID, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FailureLedgerOutcome), args.Error(1)
}

func (m *MockFailureLedgerService) IsSuspended(ctx context.Context, payerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, payerID)
	return args.Bool(0), args.Error(1)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repositories are
// plain fields so tests can wire the mocks they care about once via
// SetRepositories instead of stubbing every getter.
type MockUnitOfWork struct {
	mock.Mock

	pledgeRepo        PledgeRepository
	expenseRepo       ExpenseRepository
	withdrawalRepo    WithdrawalRepository
	failureRecordRepo FailureRecordRepository
	accountRepo       AccountRepository
	eventBus          EventPublisher
}

// SetRepositories wires the repositories and event publisher returned by
// the getters. Pass nil for collaborators the test never touches.
func (m *MockUnitOfWork) SetRepositories(
	pledgeRepo PledgeRepository,
	expenseRepo ExpenseRepository,
	withdrawalRepo WithdrawalRepository,
	failureRecordRepo FailureRecordRepository,
	accountRepo AccountRepository,
	eventBus EventPublisher,
) {
	m.pledgeRepo = pledgeRepo
	m.expenseRepo = expenseRepo
	m.withdrawalRepo = withdrawalRepo
	m.failureRecordRepo = failureRecordRepo
	m.accountRepo = accountRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) PledgeRepository() PledgeRepository { return m.pledgeRepo }

func (m *MockUnitOfWork) ExpenseRepository() ExpenseRepository { return m.expenseRepo }

func (m *MockUnitOfWork) WithdrawalRepository() WithdrawalRepository { return m.withdrawalRepo }

func (m *MockUnitOfWork) FailureRecordRepository() FailureRecordRepository {
	return m.failureRecordRepo
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository { return m.accountRepo }

func (m *MockUnitOfWork) EventBus() EventPublisher { return m.eventBus }

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
