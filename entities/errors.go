package entities

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable identifier of a ledger rejection. Kinds are part
// of the API contract: callers map them to user-facing messages, so they
// must never change between releases.
type ErrorKind string

const (
	ErrNotFound            ErrorKind = "NotFound"
	ErrUnauthorized        ErrorKind = "Unauthorized"
	ErrInsufficientPayment ErrorKind = "InsufficientPayment"
	ErrSoldOut             ErrorKind = "SoldOut"
	ErrEventInactive       ErrorKind = "EventInactive"
	ErrNoRevenue           ErrorKind = "NoRevenue"
	ErrAlreadyCheckedIn    ErrorKind = "AlreadyCheckedIn"
	ErrInvalidSignature    ErrorKind = "InvalidSignature"
	ErrMessageMismatch     ErrorKind = "MessageMismatch"
	ErrEventMismatch       ErrorKind = "EventMismatch"
	ErrSoulBound           ErrorKind = "SoulBound"
	ErrAlreadyListed       ErrorKind = "AlreadyListed"
	ErrNotListed           ErrorKind = "NotListed"
	ErrTransferNotAllowed  ErrorKind = "TransferNotAllowed"
	ErrSelfPurchase        ErrorKind = "SelfPurchase"
	ErrAttestationExpired  ErrorKind = "AttestationExpired"
)

type LedgerError struct {
	Kind    ErrorKind
	Message string
}

func (e LedgerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewLedgerError(kind ErrorKind, format string, args ...any) LedgerError {
	return LedgerError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the stable kind from an error chain. The second return is
// false for infrastructure errors that carry no ledger kind.
func KindOf(err error) (ErrorKind, bool) {
	var le LedgerError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}
