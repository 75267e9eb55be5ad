package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/chains"
	"github.com/crossmesh/bridgekit/internal/wallet"
)

// Validator checks a prospective transfer against the precondition list.
// It is pure: no state, no side effects beyond the estimator's remote call.
// Results are advisory only; the orchestrator re-validates at submit time
// because wallet state can change between check and submit.
type Validator struct {
	registry  *chains.Registry
	estimator *CostEstimator
	logger    *zap.Logger
}

func NewValidator(registry *chains.Registry, estimator *CostEstimator, logger *zap.Logger) *Validator {
	return &Validator{
		registry:  registry,
		estimator: estimator,
		logger:    logger.Named("validator"),
	}
}

// Validate runs the checks in order and short-circuits on the first failure.
// A nil return means the transfer passed every precondition at this instant.
func (v *Validator) Validate(ctx context.Context, req TransferRequest, w wallet.State) error {
	if req.Route.Source == req.Route.Destination {
		return rejected(ReasonSameChain, "both sides are %q", req.Route.Source)
	}

	info := v.registry.RouteInfo(req.Route)
	if !req.Amount.IsPositive() {
		return rejected(ReasonBelowMinimum, "amount %s is not positive", req.Amount)
	}
	if req.Amount.LessThan(info.MinTransfer) {
		return rejected(ReasonBelowMinimum, "amount %s is below route minimum %s",
			req.Amount, info.MinTransfer)
	}

	for _, key := range []string{req.Route.Source, req.Route.Destination} {
		d, err := v.registry.Resolve(key)
		if err != nil || !d.Supported {
			return rejected(ReasonUnsupportedChain, "chain %q", key)
		}
	}

	if w.ConnectedChain != req.Route.Source {
		return rejected(ReasonWrongNetwork, "wallet is on %q, source chain is %q",
			w.ConnectedChain, req.Route.Source)
	}

	est := v.estimator.Estimate(ctx, req.Route, req.Amount)
	if w.Balance.LessThan(est.TotalCost) {
		return rejected(ReasonInsufficientBalance, "need %s, have %s",
			est.TotalCost, w.Balance)
	}

	return nil
}
