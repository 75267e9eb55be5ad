// Package oracle defines the external capabilities the bridge engine depends
// on: the submission backend, the status oracle, and the fee quoter. External
// responses are normalized into tagged Observation values at this boundary so
// nothing loosely shaped reaches the state machine.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/crossmesh/bridgekit/internal/chains"
)

// Stage is the externally observed progress of a transfer, mapped onto the
// engine's state model before it crosses the boundary.
type Stage string

const (
	StagePending   Stage = "pending"
	StageConfirmed Stage = "confirmed"
	StageProving   Stage = "proving"
	StageBridging  Stage = "bridging"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// ErrUnavailable marks a transient oracle failure: the status is unknown, not
// failed. Callers retry with backoff and must not fail the transfer on it.
var ErrUnavailable = errors.New("status oracle unavailable")

// TerminalError is an oracle-confirmed failure of the underlying operation
// (proof rejected, destination execution reverted). Unlike ErrUnavailable it
// is authoritative.
type TerminalError struct {
	Reason string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("oracle reported terminal failure: %s", e.Reason)
}

// Observation is the normalized result of one status poll. Reference fields
// are populated only once the corresponding stage has been reached.
type Observation struct {
	Stage            Stage
	SourceTxRef      string
	ProofRef         string
	DestinationTxRef string
	FeePaid          decimal.Decimal
	FailureReason    string
}

// SubmitRequest carries everything the backend needs to broadcast a transfer
// on the source chain.
type SubmitRequest struct {
	Route     chains.Route
	Sender    string
	Recipient string
	Amount    decimal.Decimal
}

// SubmitReceipt acknowledges a broadcast. TrackingRef is the opaque handle
// subsequent status polls are keyed by.
type SubmitReceipt struct {
	TrackingRef string
}

// Submitter broadcasts transfers on the source chain.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitReceipt, error)
}

// StatusOracle reports the current stage of a previously submitted transfer.
// Implementations return ErrUnavailable for transient faults and
// *TerminalError when the backend has confirmed the transfer failed.
type StatusOracle interface {
	Status(ctx context.Context, trackingRef string) (Observation, error)
}

// FeeQuoter estimates the source-chain fee for a prospective transfer.
// Estimates are advisory; callers fall back to defaults when this fails.
type FeeQuoter interface {
	QuoteFee(ctx context.Context, route chains.Route, amount decimal.Decimal) (decimal.Decimal, error)
}
