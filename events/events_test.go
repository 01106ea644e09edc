package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionalBusFlushDeliversToMainBus(t *testing.T) {
	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	received := make(chan PaymentSucceededEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypePaymentSucceeded, func(ctx context.Context, event Event) {
		defer wg.Done()
		if e, ok := event.(PaymentSucceededEvent); ok {
			received <- e
		} else {
			t.Errorf("Expected PaymentSucceededEvent, got %T", event)
		}
	})

	testEvent := PaymentSucceededEvent{
		PayerID:   uuid.New(),
		ExpenseID: uuid.New(),
		Amount:    decimal.RequireFromString("3.33"),
		Reference: "pi_test_123",
	}

	// Publish before flush: nothing should be delivered yet
	txBus.Publish(testEvent)
	select {
	case <-received:
		t.Fatal("Event delivered before flush")
	case <-time.After(50 * time.Millisecond):
	}

	err := txBus.Flush(context.Background())
	assert.NoError(t, err)
	wg.Wait()

	select {
	case got := <-received:
		assert.Equal(t, testEvent.PayerID, got.PayerID)
		assert.Equal(t, testEvent.ExpenseID, got.ExpenseID)
		assert.True(t, testEvent.Amount.Equal(got.Amount))
		assert.Equal(t, testEvent.Reference, got.Reference)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestTransactionalBusDiscard(t *testing.T) {
	mainBus := NewBus()
	txBus := NewTransactionalBus(mainBus)

	delivered := make(chan Event, 1)
	mainBus.Subscribe(EventTypePaymentFailed, func(ctx context.Context, event Event) {
		delivered <- event
	})

	txBus.Publish(PaymentFailedEvent{PayerID: uuid.New(), Reason: "card_declined"})
	txBus.Discard()

	err := txBus.Flush(context.Background())
	assert.NoError(t, err)

	select {
	case <-delivered:
		t.Fatal("Discarded event was delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusEmitMultipleHandlers(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	count := 0

	handler := func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		count++
		mu.Unlock()
	}
	bus.Subscribe(EventTypePayerSuspended, handler)
	bus.Subscribe(EventTypePayerSuspended, handler)

	bus.Emit(context.Background(), PayerSuspendedEvent{PayerID: uuid.New(), ConsecutiveFailures: 3})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}
