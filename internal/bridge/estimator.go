package bridge

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/chains"
	"github.com/crossmesh/bridgekit/internal/oracle"
)

// Estimator defaults. The fallback fee stands in when the remote quote is
// unavailable; the bridge fee rate matches the 0.1% quoted in the demo UI.
var (
	DefaultFallbackFee   = decimal.RequireFromString("0.0005")
	DefaultBridgeFeeRate = decimal.RequireFromString("0.001")
)

const defaultQuoteTimeout = 5 * time.Second

// Estimate is the advisory cost breakdown for a prospective transfer.
type Estimate struct {
	GasFee    decimal.Decimal `json:"gas_fee"`
	BridgeFee decimal.Decimal `json:"bridge_fee"`
	TotalCost decimal.Decimal `json:"total_cost"`

	// Fallback marks an estimate produced from defaults because the remote
	// quote failed; accuracy degraded, never an error.
	Fallback bool `json:"fallback"`
}

// Fee is the full fee component: gas plus the bridge's percentage cut.
func (e Estimate) Fee() decimal.Decimal {
	return e.GasFee.Add(e.BridgeFee)
}

// CostEstimator produces cost estimates for display and balance validation.
// Its contract is that it never fails: when the remote quoter errors or times
// out it degrades to the configured fallback fee.
type CostEstimator struct {
	quoter        oracle.FeeQuoter
	fallbackFee   decimal.Decimal
	bridgeFeeRate decimal.Decimal
	quoteTimeout  time.Duration
	logger        *zap.Logger
}

func NewCostEstimator(quoter oracle.FeeQuoter, logger *zap.Logger) *CostEstimator {
	return &CostEstimator{
		quoter:        quoter,
		fallbackFee:   DefaultFallbackFee,
		bridgeFeeRate: DefaultBridgeFeeRate,
		quoteTimeout:  defaultQuoteTimeout,
		logger:        logger.Named("estimator"),
	}
}

// Estimate computes the expected cost of moving amount over route. All
// arithmetic is decimal; repeated calls with equal inputs are bit-identical.
func (e *CostEstimator) Estimate(ctx context.Context, route chains.Route, amount decimal.Decimal) Estimate {
	gasFee := e.fallbackFee
	fallback := true

	if e.quoter != nil {
		quoteCtx, cancel := context.WithTimeout(ctx, e.quoteTimeout)
		quoted, err := e.quoter.QuoteFee(quoteCtx, route, amount)
		cancel()
		if err != nil {
			e.logger.Warn("Remote fee quote failed, using fallback",
				zap.String("route", route.String()),
				zap.Error(err))
		} else if quoted.IsNegative() {
			e.logger.Warn("Remote fee quote negative, using fallback",
				zap.String("route", route.String()),
				zap.String("quoted", quoted.String()))
		} else {
			gasFee = quoted
			fallback = false
		}
	}

	bridgeFee := amount.Mul(e.bridgeFeeRate)
	est := Estimate{
		GasFee:    gasFee,
		BridgeFee: bridgeFee,
		Fallback:  fallback,
	}
	est.TotalCost = amount.Add(est.Fee())
	return est
}
