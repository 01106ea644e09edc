package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"costpool/models"
)

// CreateTestPayer creates a payer with a usable payment handle
func CreateTestPayer(name string) *models.Payer {
	customerID := "cus_" + uuid.NewString()[:8]
	paymentMethodID := "pm_" + uuid.NewString()[:8]
	return &models.Payer{
		DisplayName:     name,
		Email:           name + "@example.com",
		CustomerID:      &customerID,
		PaymentMethodID: &paymentMethodID,
	}
}

// CreateTestPayee creates a fully onboarded payee
func CreateTestPayee(name string) *models.Payee {
	accountID := "acct_" + uuid.NewString()[:8]
	return &models.Payee{
		DisplayName:     name,
		Email:           name + "@example.com",
		PayoutAccountID: &accountID,
		PayoutOnboarded: true,
	}
}

// CreateTestExpense creates an expense owned by the given payee
func CreateTestExpense(payeeID uuid.UUID, targetCost string, settlementDay int) *models.Expense {
	return &models.Expense{
		PayeeID:       payeeID,
		Name:          "test expense",
		TargetCost:    decimal.RequireFromString(targetCost),
		SettlementDay: settlementDay,
	}
}

// CreateTestPledge creates an active pledge
func CreateTestPledge(payerID, expenseID uuid.UUID, ceiling string) *models.Pledge {
	return &models.Pledge{
		PayerID:   payerID,
		ExpenseID: expenseID,
		Ceiling:   decimal.RequireFromString(ceiling),
		Status:    models.PledgeStatusActive,
	}
}

// CreateTestWithdrawal creates a pending withdrawal scheduled on the given date
func CreateTestWithdrawal(expenseID uuid.UUID, scheduledDate time.Time) *models.Withdrawal {
	return &models.Withdrawal{
		ExpenseID:     expenseID,
		ScheduledDate: scheduledDate,
		Status:        models.WithdrawalStatusPending,
	}
}
