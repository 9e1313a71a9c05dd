package ledger

import (
	"context"
	"errors"
	"fmt"

	"clawworld.ai/internal/wallet"
)

// Gateway wraps balance queries and token transfers against the
// external ledger. Implementations hold no durable state.
type Gateway interface {
	// TokenBalance returns the holder's balance of the designated
	// token in base units. A missing holding account or a transient
	// lookup fault both read as zero (logged), never as an error.
	TokenBalance(ctx context.Context, owner string) (uint64, error)

	// NativeBalance returns the holder's native-asset balance, used
	// for submission-fee sufficiency checks.
	NativeBalance(ctx context.Context, owner string) (uint64, error)

	// Transfer ensures both parties hold a token account (one-time
	// setup paid by the sender, idempotent), submits the transfer and
	// blocks until the ledger confirms it. Either it returns a
	// signature and the operation is durable, or it returns an error
	// and the transfer did not happen — though accounts created along
	// the way stay created.
	Transfer(ctx context.Context, from wallet.Keypair, to string, amount uint64) (string, error)
}

// ErrConfirmTimeout reports that a submitted transaction was not
// confirmed within the configured window. The transaction may still
// land; callers must not blindly resubmit.
var ErrConfirmTimeout = errors.New("ledger: confirmation timed out")

// SubmissionError is a ledger-side rejection or transport failure
// during submission.
type SubmissionError struct {
	Method string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Method, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
