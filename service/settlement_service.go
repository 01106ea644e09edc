package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"costpool/events"
	"costpool/models"
	"costpool/optimizer"
)

// gatewayTimeout bounds each external payment call. A timed-out charge is
// a failure for that one payer, never a crash of the settlement run.
const gatewayTimeout = 30 * time.Second

// SettlementConfig carries the tunables the executor needs
type SettlementConfig struct {
	MinPledge           decimal.Decimal
	ProcessorFeePercent decimal.Decimal
	ProcessorFeeFixed   decimal.Decimal
	Workers             int
}

type settlementService struct {
	uowFactory UnitOfWorkFactory
	gateway    PaymentGateway
	ledger     FailureLedgerService
	cfg        SettlementConfig
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, gateway PaymentGateway, ledger FailureLedgerService, cfg SettlementConfig) SettlementService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &settlementService{
		uowFactory: uowFactory,
		gateway:    gateway,
		ledger:     ledger,
		cfg:        cfg,
	}
}

// SettleDue settles every pending withdrawal whose scheduled date has
// arrived. Settlements of unrelated expenses run concurrently; the only
// state they share is the per-payer failure ledger, which serializes on
// its own row locks.
func (s *settlementService) SettleDue(ctx context.Context, now time.Time) ([]*models.SettlementResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	due, err := uow.WithdrawalRepository().GetDuePending(ctx, now)
	uow.Rollback()
	if err != nil {
		return nil, fmt.Errorf("failed to load due withdrawals: %w", err)
	}

	if len(due) == 0 {
		return nil, nil
	}

	log.WithField("count", len(due)).Info("Settling due withdrawals")

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []*models.SettlementResult
	var firstErr error

	for _, withdrawal := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(w *models.Withdrawal) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := s.Settle(ctx, w)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.WithFields(log.Fields{
					"withdrawalId": w.ID,
					"expenseId":    w.ExpenseID,
				}).WithError(err).Error("Settlement aborted")
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results = append(results, result)
		}(withdrawal)
	}
	wg.Wait()

	return results, firstErr
}

// Settle executes one withdrawal to its terminal completed state. Charges
// run against a single optimizer snapshot so every payer in the run sees
// proportionally fair amounts; per-payer outcomes are isolated from each
// other, and the withdrawal completes whether or not every charge or the
// payout succeeded.
func (s *settlementService) Settle(ctx context.Context, withdrawal *models.Withdrawal) (*models.SettlementResult, error) {
	expense, pledges, payers, payee, err := s.loadSettlementState(ctx, withdrawal)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("expense %s not found for withdrawal %s", withdrawal.ExpenseID, withdrawal.ID)
	}

	// One optimizer run per settlement: all payers share the same snapshot
	ceilings := make([]decimal.Decimal, len(pledges))
	for i, pledge := range pledges {
		ceilings[i] = pledge.Ceiling
	}
	opt := optimizer.Optimize(ceilings, expense.TargetCost, s.cfg.MinPledge)

	result := &models.SettlementResult{
		WithdrawalID: withdrawal.ID,
		ExpenseID:    expense.ID,
		Collected:    decimal.Zero,
		PayoutState:  models.PayoutStateNone,
	}

	for i, pledge := range pledges {
		amount := opt.Amounts[i]
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}

		payer := payers[pledge.PayerID]
		if payer == nil || !payer.HasPaymentMethod() {
			// Missing prerequisite, not a payment failure: skip without
			// touching the failure ledger
			result.Skipped++
			log.WithFields(log.Fields{
				"payerId":   pledge.PayerID,
				"expenseId": expense.ID,
			}).Info("Skipping payer without payment method")
			continue
		}

		if err := s.chargePayer(ctx, withdrawal, expense, pledge, payer, amount, result); err != nil {
			return nil, err
		}
	}

	fees := s.processorFee(result.Collected, result.Charged)
	result.Fees = fees
	result.Net = result.Collected.Sub(fees)

	if result.Collected.GreaterThan(decimal.Zero) {
		if err := s.payOut(ctx, withdrawal, expense, payee, result); err != nil {
			return nil, err
		}
	}

	if err := s.complete(ctx, withdrawal, result); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"withdrawalId": withdrawal.ID,
		"expenseId":    expense.ID,
		"collected":    result.Collected.String(),
		"net":          result.Net.String(),
		"charged":      result.Charged,
		"failed":       result.Failed,
		"skipped":      result.Skipped,
		"payout":       result.PayoutState,
	}).Info("Settlement completed")

	return result, nil
}

// loadSettlementState reads everything a settlement needs in one snapshot
func (s *settlementService) loadSettlementState(ctx context.Context, withdrawal *models.Withdrawal) (*models.Expense, []*models.Pledge, map[uuid.UUID]*models.Payer, *models.Payee, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	expense, err := uow.ExpenseRepository().GetByID(ctx, withdrawal.ExpenseID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to get expense: %w", err)
	}
	if expense == nil {
		return nil, nil, nil, nil, nil
	}

	pledges, err := uow.PledgeRepository().GetActiveByExpense(ctx, expense.ID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to get pledges: %w", err)
	}

	payerIDs := make([]uuid.UUID, len(pledges))
	for i, pledge := range pledges {
		payerIDs[i] = pledge.PayerID
	}
	payers, err := uow.AccountRepository().GetPayersByIDs(ctx, payerIDs)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to get payers: %w", err)
	}

	payee, err := uow.AccountRepository().GetPayee(ctx, expense.PayeeID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to get payee: %w", err)
	}

	return expense, pledges, payers, payee, nil
}

// chargePayer attempts one off-session charge and records the outcome.
// Gateway failures are converted to ledger mutations and events; only
// infrastructure errors propagate.
func (s *settlementService) chargePayer(ctx context.Context, withdrawal *models.Withdrawal, expense *models.Expense, pledge *models.Pledge, payer *models.Payer, amount decimal.Decimal, result *models.SettlementResult) error {
	idempotencyKey := fmt.Sprintf("wd-%s-payer-%s", withdrawal.ID, payer.ID)

	chargeCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	charge, err := s.gateway.ChargePayer(chargeCtx, payer.Handle(), amount, idempotencyKey)
	if err != nil || !charge.Succeeded {
		reason := "gateway error"
		if err != nil {
			reason = err.Error()
		} else if charge.Reason != "" {
			reason = charge.Reason
		}

		result.Failed++
		if _, lerr := s.ledger.RecordFailure(ctx, payer.ID, expense.ID, amount, reason); lerr != nil {
			return fmt.Errorf("failed to record charge failure: %w", lerr)
		}
		return nil
	}

	if err := s.ledger.RecordSuccess(ctx, payer.ID); err != nil {
		return fmt.Errorf("failed to record charge success: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.PledgeRepository().SetLastChargedAmount(ctx, pledge.ID, amount); err != nil {
		return fmt.Errorf("failed to cache charged amount: %w", err)
	}

	uow.EventBus().Publish(events.PaymentSucceededEvent{
		PayerID:    payer.ID,
		PayerEmail: payer.Email,
		ExpenseID:  expense.ID,
		Amount:     amount,
		Reference:  charge.Reference,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	result.Collected = result.Collected.Add(amount)
	result.Charged++
	return nil
}

// payOut forwards net proceeds to the payee, or records why it could not
func (s *settlementService) payOut(ctx context.Context, withdrawal *models.Withdrawal, expense *models.Expense, payee *models.Payee, result *models.SettlementResult) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	switch {
	case payee == nil || !payee.CanReceivePayouts():
		// Funds stay tracked as owed; an operator resolves this manually
		result.PayoutState = models.PayoutStateHeld
		uow.EventBus().Publish(events.PayoutHeldEvent{
			PayeeID:    expense.PayeeID,
			PayeeEmail: payeeEmail(payee),
			ExpenseID:  expense.ID,
			Amount:     result.Net,
		})

	default:
		transferCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
		defer cancel()

		transfer, err := s.gateway.TransferToPayee(transferCtx, *payee.PayoutAccountID, result.Net, map[string]string{
			"expense_id":    expense.ID.String(),
			"withdrawal_id": withdrawal.ID.String(),
		})
		if err != nil || !transfer.Succeeded {
			reason := "gateway error"
			if err != nil {
				reason = err.Error()
			} else if transfer.Reason != "" {
				reason = transfer.Reason
			}

			// Terminal for this cycle: the collected charges stand, and
			// the failure is surfaced for manual reconciliation
			result.PayoutState = models.PayoutStateFailed
			uow.EventBus().Publish(events.PayoutFailedEvent{
				PayeeID:    payee.ID,
				PayeeEmail: payee.Email,
				ExpenseID:  expense.ID,
				Amount:     result.Net,
				Reason:     reason,
			})
			log.WithFields(log.Fields{
				"payeeId":   payee.ID,
				"expenseId": expense.ID,
				"amount":    result.Net.String(),
			}).WithError(fmt.Errorf("%s", reason)).Error("Payout failed; manual reconciliation required")
		} else {
			result.PayoutState = models.PayoutStateSent
			uow.EventBus().Publish(events.PayoutSentEvent{
				PayeeID:    payee.ID,
				PayeeEmail: payee.Email,
				ExpenseID:  expense.ID,
				Amount:     result.Net,
				Reference:  transfer.Reference,
			})
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// complete marks the withdrawal's terminal state: the cycle's attempt has
// concluded, regardless of individual charge or payout outcomes
func (s *settlementService) complete(ctx context.Context, withdrawal *models.Withdrawal, result *models.SettlementResult) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.WithdrawalRepository().Complete(ctx, withdrawal.ID, result.Collected); err != nil {
		return fmt.Errorf("failed to complete withdrawal: %w", err)
	}

	uow.EventBus().Publish(events.WithdrawalCompletedEvent{
		WithdrawalID: withdrawal.ID,
		ExpenseID:    withdrawal.ExpenseID,
		Collected:    result.Collected,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// processorFee models the payment processor's cut: a percentage of the
// collected total plus a fixed amount per successful charge. No platform
// fee is taken on this settlement path.
func (s *settlementService) processorFee(collected decimal.Decimal, charges int) decimal.Decimal {
	if charges == 0 || collected.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	fee := collected.Mul(s.cfg.ProcessorFeePercent).
		Add(s.cfg.ProcessorFeeFixed.Mul(decimal.NewFromInt(int64(charges)))).
		Round(2)
	if fee.GreaterThan(collected) {
		return collected
	}
	return fee
}

func payeeEmail(payee *models.Payee) string {
	if payee == nil {
		return ""
	}
	return payee.Email
}
