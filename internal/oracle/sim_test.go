package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/chains"
)

var simRoute = chains.Route{Source: "sepolia", Destination: "base-sepolia"}

func simRequest() SubmitRequest {
	return SubmitRequest{
		Route:     simRoute,
		Sender:    "0xalice",
		Recipient: "0xalice",
		Amount:    decimal.RequireFromString("0.5"),
	}
}

func newSimFixture(t *testing.T, cfg SimulatorConfig) (*Simulator, *ManualClock) {
	t.Helper()
	clock := NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewSimulator(cfg, clock, zap.NewNop()), clock
}

func TestSimulatorTimeline(t *testing.T) {
	sim, clock := newSimFixture(t, DefaultSimulatorConfig())
	ctx := context.Background()

	receipt, err := sim.Submit(ctx, simRequest())
	require.NoError(t, err)
	require.NotEmpty(t, receipt.TrackingRef)

	obs, err := sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	assert.Equal(t, StagePending, obs.Stage)
	assert.Empty(t, obs.SourceTxRef, "no refs before confirmation")

	clock.Advance(5 * time.Second)
	obs, err = sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	assert.Equal(t, StageConfirmed, obs.Stage)
	assert.NotEmpty(t, obs.SourceTxRef)
	assert.True(t, obs.FeePaid.IsPositive())
	assert.Empty(t, obs.ProofRef)

	clock.Advance(20 * time.Second) // 25s in
	obs, err = sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	assert.Equal(t, StageProving, obs.Stage)
	assert.Contains(t, obs.ProofRef, "proof_")

	clock.Advance(25 * time.Second) // 50s in
	obs, err = sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	assert.Equal(t, StageBridging, obs.Stage)
	assert.Empty(t, obs.DestinationTxRef)

	clock.Advance(time.Hour)
	obs, err = sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, obs.Stage)
	assert.NotEmpty(t, obs.DestinationTxRef)
}

func TestSimulatorStatusIsStableAcrossPolls(t *testing.T) {
	sim, clock := newSimFixture(t, DefaultSimulatorConfig())
	ctx := context.Background()

	receipt, err := sim.Submit(ctx, simRequest())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	first, err := sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	second, err := sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)

	assert.Equal(t, first.SourceTxRef, second.SourceTxRef)
	assert.Equal(t, first.ProofRef, second.ProofRef)
	assert.Equal(t, first.DestinationTxRef, second.DestinationTxRef)
}

func TestSimulatorFailAtStage(t *testing.T) {
	cfg := DefaultSimulatorConfig()
	cfg.FailAtStage = StageProving
	cfg.FailureReason = "synthetic proving failure"
	sim, clock := newSimFixture(t, cfg)
	ctx := context.Background()

	receipt, err := sim.Submit(ctx, simRequest())
	require.NoError(t, err)

	// Confirmation still happens on schedule.
	clock.Advance(5 * time.Second)
	obs, err := sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	assert.Equal(t, StageConfirmed, obs.Stage)

	clock.Advance(time.Hour)
	obs, err = sim.Status(ctx, receipt.TrackingRef)
	require.NoError(t, err)
	assert.Equal(t, StageFailed, obs.Stage)
	assert.Equal(t, "synthetic proving failure", obs.FailureReason)
}

func TestSimulatorTransientFailures(t *testing.T) {
	cfg := DefaultSimulatorConfig()
	cfg.TransientFailEvery = 2
	sim, _ := newSimFixture(t, cfg)
	ctx := context.Background()

	receipt, err := sim.Submit(ctx, simRequest())
	require.NoError(t, err)

	_, err = sim.Status(ctx, receipt.TrackingRef)
	assert.NoError(t, err)
	_, err = sim.Status(ctx, receipt.TrackingRef)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = sim.Status(ctx, receipt.TrackingRef)
	assert.NoError(t, err)
}

func TestSimulatorUnknownTrackingRef(t *testing.T) {
	sim, _ := newSimFixture(t, DefaultSimulatorConfig())

	_, err := sim.Status(context.Background(), "0xunknown")
	assert.ErrorIs(t, err, ErrUnavailable, "an unknown ref is indistinguishable from lag, not terminal")
}

func TestSimulatorQuoteFee(t *testing.T) {
	sim, _ := newSimFixture(t, DefaultSimulatorConfig())

	fee, err := sim.QuoteFee(context.Background(), simRoute, decimal.RequireFromString("1"))
	require.NoError(t, err)
	assert.True(t, fee.Equal(DefaultSimulatorConfig().FlatFee))
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	ch := clock.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before the clock advanced")
	default:
	}

	clock.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}

	clock.Advance(5 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("timer did not fire at its deadline")
	}

	// Non-positive waits fire immediately.
	select {
	case <-clock.After(0):
	default:
		t.Fatal("zero-duration timer did not fire")
	}
}
