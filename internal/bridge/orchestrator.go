package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/chains"
	"github.com/crossmesh/bridgekit/internal/events"
	"github.com/crossmesh/bridgekit/internal/oracle"
	"github.com/crossmesh/bridgekit/internal/wallet"
)

// Tracker is notified when a submitted transfer needs background
// reconciliation. Implemented by the Reconciler; split out so the
// orchestrator can be exercised without one.
type Tracker interface {
	Track(transferID, trackingRef string, estimated time.Duration)
}

// OrchestratorDeps wires the orchestrator's collaborators.
type OrchestratorDeps struct {
	Store     *Store
	Registry  *chains.Registry
	Validator *Validator
	Submitter oracle.Submitter
	Wallets   wallet.Provider
	Bus       *events.Bus
	Clock     oracle.Clock
	Logger    *zap.Logger
}

// Orchestrator owns the transfer state machine: it validates and submits
// transfers, records them in the store, and applies every observed state
// transition until the transfer is terminal.
type Orchestrator struct {
	store     *Store
	registry  *chains.Registry
	validator *Validator
	submitter oracle.Submitter
	wallets   wallet.Provider
	bus       *events.Bus
	clock     oracle.Clock
	logger    *zap.Logger

	tracker Tracker

	// inFlight guards against duplicate concurrent submissions of the same
	// logical transfer (double-click on the submit button).
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	clock := deps.Clock
	if clock == nil {
		clock = oracle.SystemClock{}
	}
	return &Orchestrator{
		store:     deps.Store,
		registry:  deps.Registry,
		validator: deps.Validator,
		submitter: deps.Submitter,
		wallets:   deps.Wallets,
		bus:       deps.Bus,
		clock:     clock,
		logger:    deps.Logger.Named("orchestrator"),
		inFlight:  make(map[string]struct{}),
	}
}

// SetTracker attaches the background reconciler. Wiring happens after
// construction because the reconciler feeds observations back into the
// orchestrator.
func (o *Orchestrator) SetTracker(t Tracker) {
	o.tracker = t
}

// Submit validates the request against a fresh wallet snapshot, creates the
// Pending record, and hands the transfer to the submission backend. Failures
// before the record exists return only an error; broadcast failures move the
// record to Failed and are surfaced synchronously.
func (o *Orchestrator) Submit(ctx context.Context, req TransferRequest) (*Transfer, error) {
	key := submitKey(req)
	if !o.acquire(key) {
		return nil, ErrSubmitInFlight
	}
	defer o.release(key)

	// Re-read wallet state: whatever the caller validated earlier may be
	// stale by now.
	w, err := o.wallets.State(ctx, req.Sender)
	if err != nil {
		return nil, &SubmissionError{Cause: fmt.Errorf("wallet state unavailable: %w", err)}
	}
	if err := o.validator.Validate(ctx, req, w); err != nil {
		return nil, err
	}

	info := o.registry.RouteInfo(req.Route)
	t := &Transfer{
		ID:                uuid.New().String(),
		SourceChain:       req.Route.Source,
		DestinationChain:  req.Route.Destination,
		Amount:            req.Amount,
		Sender:            req.Sender,
		Recipient:         req.Recipient,
		State:             StatePending,
		CreatedAt:         o.clock.Now(),
		EstimatedDuration: info.EstimatedDuration,
	}
	o.store.Put(t)
	o.publish(&events.TransferCreatedEvent{
		BaseEvent:  o.base(events.TransferCreated),
		TransferID: t.ID,
		Account:    t.Sender,
		Route:      req.Route.String(),
		Amount:     req.Amount.String(),
	})

	o.logger.Info("Transfer submitted",
		zap.String("id", t.ID),
		zap.String("route", req.Route.String()),
		zap.String("amount", req.Amount.String()))

	receipt, err := o.submitter.Submit(ctx, oracle.SubmitRequest{
		Route:     req.Route,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount,
	})
	if err != nil {
		subErr := &SubmissionError{Cause: err}
		o.failTransfer(t.ID, subErr.Error())
		return nil, subErr
	}

	updated, err := o.store.Update(t.ID, func(cur *Transfer) error {
		cur.TrackingRef = receipt.TrackingRef
		return nil
	})
	if err != nil {
		return nil, err
	}

	if o.tracker != nil {
		o.tracker.Track(updated.ID, receipt.TrackingRef, updated.EstimatedDuration)
	}
	return updated, nil
}

// GetTransfer returns a snapshot of one transfer.
func (o *Orchestrator) GetTransfer(id string) (*Transfer, error) {
	return o.store.Get(id)
}

// ListTransfers returns the account's transfers, newest first.
func (o *Orchestrator) ListTransfers(account string) []*Transfer {
	return o.store.ListByAccount(account)
}

// ApplyObservation feeds an oracle observation into the state machine.
// Transitions are guarded by the current state: re-applying an observation is
// a no-op and a stage behind the current state is ignored, never regressed
// to. When the oracle reports a stage more than one step ahead, the record
// advances through the intermediate states so the ordering invariant holds.
// Returns the resulting snapshot and whether anything changed.
func (o *Orchestrator) ApplyObservation(id string, obs oracle.Observation) (*Transfer, bool, error) {
	target, ok := stateForStage(obs.Stage)
	if !ok {
		return nil, false, fmt.Errorf("unrecognized oracle stage %q", obs.Stage)
	}

	var from State
	var steps []State
	updated, err := o.store.Update(id, func(t *Transfer) error {
		from = t.State
		steps = steps[:0]
		if t.State.Terminal() || t.State == target {
			return nil
		}

		if target == StateFailed {
			o.enterState(t, StateFailed, obs)
			steps = append(steps, StateFailed)
			return nil
		}

		// Stale report: the oracle is behind the recorded state.
		if stateRank[target] <= stateRank[t.State] {
			return nil
		}

		for t.State != target {
			next := nextState(t.State)
			if next == "" || !canTransition(t.State, next) {
				break
			}
			o.enterState(t, next, obs)
			steps = append(steps, next)
			if stateRank[next] >= stateRank[target] {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if len(steps) == 0 {
		if stateRank[target] < stateRank[from] {
			o.logger.Debug("Ignoring stale oracle observation",
				zap.String("id", id),
				zap.String("current", string(from)),
				zap.String("observed", string(target)))
		}
		return updated, false, nil
	}

	o.publishTransition(updated, from)
	return updated, true, nil
}

// MarkDelayed sets the timeout advisory on a still-running transfer.
func (o *Orchestrator) MarkDelayed(id string) (*Transfer, error) {
	var flagged bool
	updated, err := o.store.Update(id, func(t *Transfer) error {
		if t.State.Terminal() || t.Delayed {
			return nil
		}
		t.Delayed = true
		flagged = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if flagged {
		o.logger.Warn("Transfer taking longer than expected",
			zap.String("id", id),
			zap.Duration("estimated", updated.EstimatedDuration))
		o.publish(&events.TransferDelayedEvent{
			BaseEvent:  o.base(events.TransferDelayed),
			TransferID: updated.ID,
			Account:    updated.Sender,
			Elapsed:    o.clock.Now().Sub(updated.CreatedAt),
		})
	}
	return updated, nil
}

// enterState applies the transition side effects. Reference fields are
// write-once: set only when still empty.
func (o *Orchestrator) enterState(t *Transfer, next State, obs oracle.Observation) {
	t.State = next
	switch next {
	case StateConfirmed:
		if t.SourceTxRef == "" {
			t.SourceTxRef = obs.SourceTxRef
		}
		if t.FeePaid.IsZero() {
			t.FeePaid = obs.FeePaid
		}
	case StateProving:
		if t.ProofRef == "" {
			t.ProofRef = obs.ProofRef
		}
	case StateCompleted:
		if t.DestinationTxRef == "" {
			t.DestinationTxRef = obs.DestinationTxRef
		}
		if t.ActualDuration == 0 {
			t.ActualDuration = o.clock.Now().Sub(t.CreatedAt)
		}
	case StateFailed:
		if t.FailureReason == "" {
			t.FailureReason = obs.FailureReason
			if t.FailureReason == "" {
				t.FailureReason = "transfer failed"
			}
		}
	}
}

func (o *Orchestrator) failTransfer(id, reason string) {
	updated, err := o.store.Update(id, func(t *Transfer) error {
		if t.State.Terminal() {
			return nil
		}
		t.State = StateFailed
		t.FailureReason = reason
		return nil
	})
	if err != nil {
		o.logger.Error("Failed to record transfer failure",
			zap.String("id", id), zap.Error(err))
		return
	}
	o.logger.Warn("Transfer failed at submission",
		zap.String("id", id),
		zap.String("reason", reason))
	o.publishTransition(updated, StatePending)
}

func (o *Orchestrator) publishTransition(t *Transfer, from State) {
	if from != t.State {
		o.publish(&events.TransferStateChangedEvent{
			BaseEvent:  o.base(events.TransferStateChanged),
			TransferID: t.ID,
			Account:    t.Sender,
			FromState:  string(from),
			ToState:    string(t.State),
		})
	}
	switch t.State {
	case StateCompleted:
		o.publish(&events.TransferCompletedEvent{
			BaseEvent:        o.base(events.TransferCompleted),
			TransferID:       t.ID,
			Account:          t.Sender,
			DestinationTxRef: t.DestinationTxRef,
			ActualDuration:   t.ActualDuration,
		})
	case StateFailed:
		o.publish(&events.TransferFailedEvent{
			BaseEvent:  o.base(events.TransferFailed),
			TransferID: t.ID,
			Account:    t.Sender,
			Reason:     t.FailureReason,
		})
	}
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		_ = o.bus.Publish(e)
	}
}

func (o *Orchestrator) base(typ events.EventType) events.BaseEvent {
	return events.BaseEvent{EventType: typ, EventTime: o.clock.Now()}
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[key]; busy {
		return false
	}
	o.inFlight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, key)
}

func submitKey(req TransferRequest) string {
	return req.Sender + "|" + req.Route.String() + "|" + req.Amount.String()
}

// nextState is the successor on the success path.
func nextState(s State) State {
	switch s {
	case StatePending:
		return StateConfirmed
	case StateConfirmed:
		return StateProving
	case StateProving:
		return StateBridging
	case StateBridging:
		return StateCompleted
	default:
		return ""
	}
}
