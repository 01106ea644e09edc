package models

import (
	"time"

	"github.com/google/uuid"
)

// SuspensionThreshold is the number of consecutive charge failures after
// which a payer is suspended and all of their active pledges are cancelled.
// The failure count is shared across every expense the payer backs.
const SuspensionThreshold = 3

// FailureRecord tracks consecutive charge failures for a single payer.
// Created lazily on first failure. The count resets to zero on any
// successful charge; suspension does not auto-clear and requires an
// explicit re-activation outside this core.
type FailureRecord struct {
	PayerID             uuid.UUID  `db:"payer_id"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	IsSuspended         bool       `db:"is_suspended"`
	SuspendedAt         *time.Time `db:"suspended_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// RemainingAttempts returns how many more consecutive failures the payer
// can incur before suspension
func (r *FailureRecord) RemainingAttempts() int {
	remaining := SuspensionThreshold - r.ConsecutiveFailures
	if remaining < 0 {
		return 0
	}
	return remaining
}
