package challenge

import "errors"

// Business-rule failures. The engine rolls back its transaction before returning
// any of these, so the ledger is left exactly as it was read.
var (
	ErrAccountNotFound     = errors.New("Account not found")
	ErrAccountNotTradable  = errors.New("Account not active or not found")
	ErrInvalidOrder        = errors.New("Invalid trade quantity or price")
	ErrInsufficientBalance = errors.New("Insufficient balance")
)

// IsBusinessError reports whether err is a rule violation rather than a store failure.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrAccountNotTradable) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrInsufficientBalance)
}
