package protocol

const (
	// Request validation.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrNameTooShort = "E_NAME_TOO_SHORT"

	// Verification.
	ErrChallengeNotFound = "E_CHALLENGE_NOT_FOUND"
	ErrChallengeExpired  = "E_CHALLENGE_EXPIRED"
	ErrChallengeRejected = "E_CHALLENGE_REJECTED"

	// Economy/ledger.
	ErrInsufficientBalance = "E_INSUFFICIENT_BALANCE"
	ErrLedgerSubmit        = "E_LEDGER_SUBMIT"
	ErrLedgerTimeout       = "E_LEDGER_TIMEOUT"
	ErrWalletUnconfigured  = "E_WALLET_UNCONFIGURED"

	// Record store / lookup.
	ErrNotFound = "E_NOT_FOUND"
	ErrStore    = "E_STORE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:          {},
	ErrNameTooShort:        {},
	ErrChallengeNotFound:   {},
	ErrChallengeExpired:    {},
	ErrChallengeRejected:   {},
	ErrInsufficientBalance: {},
	ErrLedgerSubmit:        {},
	ErrLedgerTimeout:       {},
	ErrWalletUnconfigured:  {},
	ErrNotFound:            {},
	ErrStore:               {},
	ErrInternal:            {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
