package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"costpool/models"
	"costpool/service"
)

// StripeGateway implements service.PaymentGateway on Stripe off-session
// PaymentIntents for charges and Transfers for payouts
type StripeGateway struct {
	api      *client.API
	currency string
}

// NewStripeGateway creates a gateway bound to one API key and currency
func NewStripeGateway(secretKey, currency string) *StripeGateway {
	return &StripeGateway{
		api:      client.New(secretKey, nil),
		currency: currency,
	}
}

// ChargePayer attempts an off-session charge against the payer's stored
// payment method. Declines come back as failed ChargeResults, not errors;
// the same idempotency key makes a retried call safe against double
// charging.
func (g *StripeGateway) ChargePayer(ctx context.Context, handle models.PaymentHandle, amount decimal.Decimal, idempotencyKey string) (*service.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:        stripe.Int64(toMinorUnits(amount)),
		Currency:      stripe.String(g.currency),
		Customer:      stripe.String(handle.CustomerID),
		PaymentMethod: stripe.String(handle.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.SetIdempotencyKey(idempotencyKey)

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			log.WithFields(log.Fields{
				"customerId": handle.CustomerID,
				"code":       stripeErr.Code,
			}).Warn("Stripe charge declined")
			return &service.ChargeResult{
				Succeeded: false,
				Reason:    declineReason(stripeErr),
			}, nil
		}
		return nil, fmt.Errorf("stripe charge request failed: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return &service.ChargeResult{
			Succeeded: false,
			Reason:    fmt.Sprintf("payment intent status %s", intent.Status),
			Reference: intent.ID,
		}, nil
	}

	return &service.ChargeResult{
		Succeeded: true,
		Reference: intent.ID,
	}, nil
}

// TransferToPayee forwards net proceeds to the payee's connected account
func (g *StripeGateway) TransferToPayee(ctx context.Context, payoutAccountID string, amount decimal.Decimal, metadata map[string]string) (*service.TransferResult, error) {
	params := &stripe.TransferParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:      stripe.Int64(toMinorUnits(amount)),
		Currency:    stripe.String(g.currency),
		Destination: stripe.String(payoutAccountID),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	transfer, err := g.api.Transfers.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			log.WithFields(log.Fields{
				"payoutAccountId": payoutAccountID,
				"code":            stripeErr.Code,
			}).Warn("Stripe transfer rejected")
			return &service.TransferResult{
				Succeeded: false,
				Reason:    declineReason(stripeErr),
			}, nil
		}
		return nil, fmt.Errorf("stripe transfer request failed: %w", err)
	}

	return &service.TransferResult{
		Succeeded: true,
		Reference: transfer.ID,
	}, nil
}

// toMinorUnits converts a 2dp decimal amount to the integer minor units
// Stripe expects (cents for USD)
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func declineReason(stripeErr *stripe.Error) string {
	if stripeErr.DeclineCode != "" {
		return string(stripeErr.DeclineCode)
	}
	if stripeErr.Code != "" {
		return string(stripeErr.Code)
	}
	return stripeErr.Msg
}
