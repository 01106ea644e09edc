package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense represents a recurring fixed cost funded by a pool of pledges
type Expense struct {
	ID            uuid.UUID       `db:"id"`
	PayeeID       uuid.UUID       `db:"payee_id"`
	Name          string          `db:"name"`
	TargetCost    decimal.Decimal `db:"target_cost"`
	SettlementDay int             `db:"settlement_day"`
	CreatedAt     time.Time       `db:"created_at"`
}
