package models

import (
	"time"

	"github.com/google/uuid"
)

// Payer is the identity and payment-method handle tuple consumed from the
// external account system. A payer without a usable payment handle is
// skipped at settlement time; no failure is recorded for them.
type Payer struct {
	ID              uuid.UUID `db:"id"`
	DisplayName     string    `db:"display_name"`
	Email           string    `db:"email"`
	CustomerID      *string   `db:"customer_id"`
	PaymentMethodID *string   `db:"payment_method_id"`
	CreatedAt       time.Time `db:"created_at"`
}

// HasPaymentMethod reports whether the payer can be charged off-session
func (p *Payer) HasPaymentMethod() bool {
	return p.CustomerID != nil && *p.CustomerID != "" &&
		p.PaymentMethodID != nil && *p.PaymentMethodID != ""
}

// PaymentHandle is the opaque pair the payment gateway needs to charge a
// payer without live user interaction
type PaymentHandle struct {
	CustomerID      string
	PaymentMethodID string
}

// Handle returns the payer's payment handle; only valid when
// HasPaymentMethod is true
func (p *Payer) Handle() PaymentHandle {
	return PaymentHandle{
		CustomerID:      *p.CustomerID,
		PaymentMethodID: *p.PaymentMethodID,
	}
}

// Payee is the expense owner's identity and payout-account handle
type Payee struct {
	ID              uuid.UUID `db:"id"`
	DisplayName     string    `db:"display_name"`
	Email           string    `db:"email"`
	PayoutAccountID *string   `db:"payout_account_id"`
	PayoutOnboarded bool      `db:"payout_onboarded"`
	CreatedAt       time.Time `db:"created_at"`
}

// CanReceivePayouts reports whether net proceeds can be transferred to the
// payee; otherwise funds are tracked as owed and held
func (p *Payee) CanReceivePayouts() bool {
	return p.PayoutOnboarded && p.PayoutAccountID != nil && *p.PayoutAccountID != ""
}
