package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/prover"
)

// ProofAPI is the slice of the proving service the oracle needs.
type ProofAPI interface {
	ProvePacket(ctx context.Context, req prover.ProofRequest) (*prover.ProofResponse, error)
	GetProof(ctx context.Context, proofID string) (*prover.ProofResponse, error)
}

// ProverOracle reports transfer status from the remote proving service.
// The first successful poll for a tracking ref registers a proof request;
// subsequent polls follow the proof through its lifecycle. Service statuses
// map onto stages as: registered -> confirmed, pending -> proving,
// proven -> bridging, executed -> completed, failed -> terminal failure.
type ProverOracle struct {
	api    ProofAPI
	route  RouteHint
	logger *zap.Logger

	mu     sync.Mutex
	proofs map[string]string // trackingRef -> proofID
	seq    uint64
}

// RouteHint carries the chain pair the oracle registers proofs under.
type RouteHint struct {
	SourceChain string
	TargetChain string
}

func NewProverOracle(api ProofAPI, route RouteHint, logger *zap.Logger) *ProverOracle {
	return &ProverOracle{
		api:    api,
		route:  route,
		logger: logger.Named("prover-oracle"),
		proofs: make(map[string]string),
	}
}

func (o *ProverOracle) Status(ctx context.Context, trackingRef string) (Observation, error) {
	o.mu.Lock()
	proofID, registered := o.proofs[trackingRef]
	o.mu.Unlock()

	if !registered {
		return o.register(ctx, trackingRef)
	}

	resp, err := o.api.GetProof(ctx, proofID)
	if err != nil {
		var apiErr *prover.APIError
		if errors.As(err, &apiErr) {
			return Observation{}, &TerminalError{Reason: apiErr.Message}
		}
		return Observation{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	obs := Observation{SourceTxRef: trackingRef, ProofRef: proofID}
	switch resp.Status {
	case "pending":
		obs.Stage = StageProving
	case "proven":
		obs.Stage = StageBridging
	case "executed":
		obs.Stage = StageCompleted
		obs.DestinationTxRef = resp.MerkleRoot
	case "failed":
		reason := resp.Error
		if reason == "" {
			reason = "proof rejected by proving service"
		}
		return Observation{}, &TerminalError{Reason: reason}
	default:
		o.logger.Warn("Unknown proof status from proving service",
			zap.String("status", resp.Status))
		return Observation{}, fmt.Errorf("%w: unknown proof status %q", ErrUnavailable, resp.Status)
	}
	return obs, nil
}

// register files the proof request; success doubles as the source-chain
// confirmation signal.
func (o *ProverOracle) register(ctx context.Context, trackingRef string) (Observation, error) {
	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.mu.Unlock()

	resp, err := o.api.ProvePacket(ctx, prover.ProofRequest{
		SourceChain: o.route.SourceChain,
		TargetChain: o.route.TargetChain,
		PacketData:  trackingRef,
		Sequence:    seq,
	})
	if err != nil {
		var apiErr *prover.APIError
		if errors.As(err, &apiErr) {
			return Observation{}, &TerminalError{Reason: apiErr.Message}
		}
		return Observation{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	o.mu.Lock()
	o.proofs[trackingRef] = resp.ProofID
	o.mu.Unlock()

	return Observation{
		Stage:       StageConfirmed,
		SourceTxRef: trackingRef,
		ProofRef:    resp.ProofID,
	}, nil
}
