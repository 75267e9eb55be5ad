// Package bridge implements the cross-chain transfer engine: the transfer
// state machine, precondition validation, cost estimation, the in-memory
// transfer store, and the background reconciler that drives every submitted
// transfer to a terminal state.
package bridge

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/crossmesh/bridgekit/internal/chains"
	"github.com/crossmesh/bridgekit/internal/oracle"
)

// State is a transfer's position in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateProving   State = "proving"
	StateBridging  State = "bridging"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var stateRank = map[State]int{
	StatePending:   0,
	StateConfirmed: 1,
	StateProving:   2,
	StateBridging:  3,
	StateCompleted: 4,
}

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// canTransition enforces the transition table: forward-only along the success
// path, one step at a time, with Failed reachable from any non-terminal state.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	fromRank, ok1 := stateRank[from]
	toRank, ok2 := stateRank[to]
	return ok1 && ok2 && toRank == fromRank+1
}

// stateForStage maps a normalized oracle stage onto the state model.
func stateForStage(stage oracle.Stage) (State, bool) {
	switch stage {
	case oracle.StagePending:
		return StatePending, true
	case oracle.StageConfirmed:
		return StateConfirmed, true
	case oracle.StageProving:
		return StateProving, true
	case oracle.StageBridging:
		return StateBridging, true
	case oracle.StageCompleted:
		return StateCompleted, true
	case oracle.StageFailed:
		return StateFailed, true
	default:
		return "", false
	}
}

// Transfer is the canonical record of one cross-chain transfer. The store
// owns these; everything outside receives copies.
type Transfer struct {
	ID               string          `json:"id"`
	SourceChain      string          `json:"source_chain"`
	DestinationChain string          `json:"destination_chain"`
	Amount           decimal.Decimal `json:"amount"`
	Sender           string          `json:"sender"`
	Recipient        string          `json:"recipient"`
	State            State           `json:"state"`

	// Stage references, each written exactly once when the corresponding
	// stage completes, never cleared.
	SourceTxRef      string `json:"source_tx_ref,omitempty"`
	ProofRef         string `json:"proof_ref,omitempty"`
	DestinationTxRef string `json:"destination_tx_ref,omitempty"`

	// TrackingRef is the opaque handle the status oracle is polled with.
	TrackingRef string `json:"tracking_ref,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	// Delayed is the timeout advisory: set when the transfer outlives its
	// estimate plus grace buffer while still non-terminal. Not a failure.
	Delayed bool `json:"delayed,omitempty"`

	CreatedAt         time.Time       `json:"created_at"`
	EstimatedDuration time.Duration   `json:"estimated_duration"`
	ActualDuration    time.Duration   `json:"actual_duration,omitempty"`
	FeePaid           decimal.Decimal `json:"fee_paid"`
}

// Route returns the transfer's chain pair.
func (t *Transfer) Route() chains.Route {
	return chains.Route{Source: t.SourceChain, Destination: t.DestinationChain}
}

// Clone returns an independent copy safe to hand to readers.
func (t *Transfer) Clone() *Transfer {
	cp := *t
	return &cp
}

// TransferRequest is a prospective transfer, as validated and submitted.
type TransferRequest struct {
	Route     chains.Route
	Amount    decimal.Decimal
	Sender    string
	Recipient string
}
