package oracle

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/chains"
)

// SimulatorConfig controls the synthetic transfer timeline. Offsets are
// measured from submission; each stage is reached once the clock passes it.
type SimulatorConfig struct {
	ConfirmAfter  time.Duration
	ProveAfter    time.Duration
	BridgeAfter   time.Duration
	CompleteAfter time.Duration

	// FailAtStage, when set, makes every transfer fail upon reaching the
	// given stage instead of progressing past it.
	FailAtStage   Stage
	FailureReason string

	// FlatFee is the synthesized feePaid reported at confirmation.
	FlatFee decimal.Decimal

	// TransientFailEvery makes every Nth status poll return ErrUnavailable,
	// exercising the reconciler's retry path. Zero disables it.
	TransientFailEvery int
}

// DefaultSimulatorConfig mirrors the demo timing of the original dashboard:
// confirmation within seconds, full completion within a few minutes.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		ConfirmAfter:  4 * time.Second,
		ProveAfter:    20 * time.Second,
		BridgeAfter:   45 * time.Second,
		CompleteAfter: 90 * time.Second,
		FlatFee:       decimal.RequireFromString("0.00042"),
	}
}

// Simulator is the demo-mode transfer backend. It implements Submitter,
// StatusOracle and FeeQuoter with a deterministic clock-driven timeline,
// standing in for a real prover/relayer network.
type Simulator struct {
	cfg    SimulatorConfig
	clock  Clock
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*simEntry
	polls   int
	seq     int
}

type simEntry struct {
	submittedAt time.Time
	sourceTxRef string
	proofRef    string
	destTxRef   string
}

func NewSimulator(cfg SimulatorConfig, clock Clock, logger *zap.Logger) *Simulator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Simulator{
		cfg:     cfg,
		clock:   clock,
		logger:  logger.Named("sim-backend"),
		entries: make(map[string]*simEntry),
	}
}

// Submit records the transfer and returns a tracking handle immediately; the
// simulated source chain confirms it later per the configured timeline.
func (s *Simulator) Submit(ctx context.Context, req SubmitRequest) (SubmitReceipt, error) {
	if err := ctx.Err(); err != nil {
		return SubmitReceipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ref := newTxRef()
	s.entries[ref] = &simEntry{
		submittedAt: s.clock.Now(),
		sourceTxRef: ref,
		proofRef:    fmt.Sprintf("proof_%d_%d", s.seq, s.clock.Now().UnixMilli()),
		destTxRef:   newTxRef(),
	}

	s.logger.Debug("Simulated submission accepted",
		zap.String("route", req.Route.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("tracking_ref", ref))
	return SubmitReceipt{TrackingRef: ref}, nil
}

// Status reports the stage the simulated transfer has reached.
func (s *Simulator) Status(ctx context.Context, trackingRef string) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls++
	if s.cfg.TransientFailEvery > 0 && s.polls%s.cfg.TransientFailEvery == 0 {
		return Observation{}, ErrUnavailable
	}

	entry, ok := s.entries[trackingRef]
	if !ok {
		return Observation{}, fmt.Errorf("%w: unknown tracking ref %q", ErrUnavailable, trackingRef)
	}

	elapsed := s.clock.Now().Sub(entry.submittedAt)
	stage := s.stageAt(elapsed)

	obs := Observation{Stage: stage}
	if stageReached(stage, StageConfirmed) {
		obs.SourceTxRef = entry.sourceTxRef
		obs.FeePaid = s.cfg.FlatFee
	}
	if stageReached(stage, StageProving) {
		obs.ProofRef = entry.proofRef
	}
	if stage == StageCompleted {
		obs.DestinationTxRef = entry.destTxRef
	}
	if stage == StageFailed {
		obs.FailureReason = s.cfg.FailureReason
		if obs.FailureReason == "" {
			obs.FailureReason = "simulated failure"
		}
	}
	return obs, nil
}

// QuoteFee returns a flat synthetic gas fee.
func (s *Simulator) QuoteFee(ctx context.Context, route chains.Route, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	return s.cfg.FlatFee, nil
}

func (s *Simulator) stageAt(elapsed time.Duration) Stage {
	stage := StagePending
	switch {
	case elapsed >= s.cfg.CompleteAfter:
		stage = StageCompleted
	case elapsed >= s.cfg.BridgeAfter:
		stage = StageBridging
	case elapsed >= s.cfg.ProveAfter:
		stage = StageProving
	case elapsed >= s.cfg.ConfirmAfter:
		stage = StageConfirmed
	}
	if s.cfg.FailAtStage != "" && stageReached(stage, s.cfg.FailAtStage) {
		return StageFailed
	}
	return stage
}

var stageOrder = map[Stage]int{
	StagePending:   0,
	StageConfirmed: 1,
	StageProving:   2,
	StageBridging:  3,
	StageCompleted: 4,
}

// stageReached reports whether stage has progressed at least as far as target
// on the success path.
func stageReached(stage, target Stage) bool {
	s, ok1 := stageOrder[stage]
	t, ok2 := stageOrder[target]
	return ok1 && ok2 && s >= t
}

// newTxRef synthesizes a 32-byte hex transaction reference.
func newTxRef() string {
	a, b := uuid.New(), uuid.New()
	return "0x" + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}
