package world

import (
	"errors"
	"fmt"
)

var (
	ErrNameTooShort       = errors.New("name required (min 2 chars)")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrInvalidRecipient   = errors.New("invalid recipient address")
	ErrWalletUnconfigured = errors.New("hot wallet not configured")
)

// InsufficientBalanceError reports an advisory pre-check failure; the
// ledger is never consulted for the transfer in this case.
type InsufficientBalanceError struct {
	Have uint64 // whole tokens
	Need uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance. Have: %d, Need: %d", e.Have, e.Need)
}
