package sink

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"costpool/events"
)

// Mailer delivers user-facing notifications. The core only needs
// fire-and-forget delivery; failures are logged, never retried here.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes notifications to the log instead of sending mail.
// Used in development and tests.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.WithFields(log.Fields{
		"to":      to,
		"subject": subject,
	}).Info(body)
	return nil
}

// Notifier subscribes to user-facing events and turns them into mail
type Notifier struct {
	mailer Mailer
}

// NewNotifier creates a notifier delivering through the given mailer
func NewNotifier(mailer Mailer) *Notifier {
	return &Notifier{mailer: mailer}
}

// Register subscribes the notifier to every user-facing event type
func (n *Notifier) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypePaymentFailed, n.handlePaymentFailed)
	bus.Subscribe(events.EventTypeRetryWarning, n.handleRetryWarning)
	bus.Subscribe(events.EventTypePayerSuspended, n.handlePayerSuspended)
	bus.Subscribe(events.EventTypePayoutSent, n.handlePayoutSent)
	bus.Subscribe(events.EventTypePayoutHeld, n.handlePayoutHeld)
	bus.Subscribe(events.EventTypePayoutFailed, n.handlePayoutFailed)
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) {
	if to == "" {
		return
	}
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		log.WithFields(log.Fields{
			"to":      to,
			"subject": subject,
		}).WithError(err).Error("Failed to send notification")
	}
}

func (n *Notifier) handlePaymentFailed(ctx context.Context, event events.Event) {
	e, ok := event.(events.PaymentFailedEvent)
	if !ok {
		return
	}
	n.send(ctx, e.PayerEmail, "Payment failed",
		fmt.Sprintf("Your payment of %s could not be processed: %s.", e.Amount, e.Reason))
}

func (n *Notifier) handleRetryWarning(ctx context.Context, event events.Event) {
	e, ok := event.(events.RetryWarningEvent)
	if !ok {
		return
	}
	n.send(ctx, e.PayerEmail, "Action needed: payment method",
		fmt.Sprintf("Please update your payment method. After %d more failed attempts your pledges will be cancelled.", e.RemainingAttempts))
}

func (n *Notifier) handlePayerSuspended(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayerSuspendedEvent)
	if !ok {
		return
	}
	n.send(ctx, e.PayerEmail, "Your pledges have been cancelled",
		fmt.Sprintf("After %d consecutive failed payments your account was suspended and %d pledges were cancelled. Contact support to re-activate.", e.ConsecutiveFailures, e.CancelledPledges))
}

func (n *Notifier) handlePayoutSent(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayoutSentEvent)
	if !ok {
		return
	}
	n.send(ctx, e.PayeeEmail, "Payout sent",
		fmt.Sprintf("A payout of %s is on its way to your account.", e.Amount))
}

func (n *Notifier) handlePayoutHeld(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayoutHeldEvent)
	if !ok {
		return
	}
	n.send(ctx, e.PayeeEmail, "Payout held",
		fmt.Sprintf("We collected %s for you but could not send it: no payout account is on file. Complete onboarding to receive it.", e.Amount))
}

func (n *Notifier) handlePayoutFailed(ctx context.Context, event events.Event) {
	e, ok := event.(events.PayoutFailedEvent)
	if !ok {
		return
	}
	n.send(ctx, e.PayeeEmail, "Payout failed",
		fmt.Sprintf("A payout of %s failed: %s. Our team has been notified.", e.Amount, e.Reason))
}
