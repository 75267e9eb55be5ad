package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrSubmitInFlight rejects a duplicate submission of a logically
	// identical transfer while the first one is still being broadcast.
	ErrSubmitInFlight = errors.New("identical transfer submission already in flight")
)

// RejectReason enumerates the precondition failures a caller can receive.
// The reason is always one of these values, never a raw error passthrough.
type RejectReason string

const (
	ReasonSameChain           RejectReason = "same_chain"
	ReasonBelowMinimum        RejectReason = "below_minimum"
	ReasonUnsupportedChain    RejectReason = "unsupported_chain"
	ReasonWrongNetwork        RejectReason = "wrong_network"
	ReasonInsufficientBalance RejectReason = "insufficient_balance"
)

func (r RejectReason) message() string {
	switch r {
	case ReasonSameChain:
		return "source and destination chains must differ"
	case ReasonBelowMinimum:
		return "amount is below the route minimum"
	case ReasonUnsupportedChain:
		return "chain is not supported by the transfer backend"
	case ReasonWrongNetwork:
		return "wallet is connected to a different network than the source chain"
	case ReasonInsufficientBalance:
		return "wallet balance does not cover amount plus fees"
	default:
		return "transfer rejected"
	}
}

// ValidationError is a synchronous precondition rejection. Never retried
// automatically.
type ValidationError struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason.message(), e.Detail)
	}
	return e.Reason.message()
}

func rejected(reason RejectReason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// AsValidationError unwraps err into a *ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// SubmissionError is a synchronous broadcast failure: the wallet rejected,
// the RPC call failed, or the transaction reverted at send time. The transfer
// moves straight to Failed.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}
