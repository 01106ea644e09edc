package models

import (
	"errors"
)

// ErrPoolClosed is returned when a new pledge is rejected because the
// expense is already fully funded
var ErrPoolClosed = errors.New("pledge pool is closed: expense is fully funded")

// ErrPayerSuspended is returned when a suspended payer attempts to pledge
var ErrPayerSuspended = errors.New("payer is suspended")

// ErrWithdrawalCompleted is returned when completing a withdrawal that has
// already reached its terminal state
var ErrWithdrawalCompleted = errors.New("withdrawal already completed")
