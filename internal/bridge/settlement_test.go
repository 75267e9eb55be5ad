package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/events"
	"github.com/crossmesh/bridgekit/internal/oracle"
	"github.com/crossmesh/bridgekit/internal/wallet"
)

func TestSettlementDebitsWalletOnCompletion(t *testing.T) {
	logger := zap.NewNop()
	bus := events.NewBus(logger, 16)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	}()

	wallets := wallet.NewStaticProvider()
	wallets.SetAccount(wallet.State{
		Address:        "0xalice",
		ConnectedChain: "sepolia",
		Balance:        decimal.RequireFromString("10"),
	})

	store := NewStore(10, logger)
	tr := newTestTransfer("t1", "0xalice", StateCompleted)
	tr.FeePaid = decimal.RequireFromString("0.0006")
	store.Put(tr)

	WireSettlementDebits(bus, store, wallets, logger)

	require.NoError(t, bus.Publish(&events.TransferCompletedEvent{
		BaseEvent:  events.BaseEvent{EventType: events.TransferCompleted, EventTime: time.Now()},
		TransferID: "t1",
		Account:    "0xalice",
	}))

	// amount 0.5 + fee 0.0006
	require.Eventually(t, func() bool {
		st, err := wallets.State(context.Background(), "0xalice")
		return err == nil && st.Balance.Equal(decimal.RequireFromString("9.4994"))
	}, time.Second, 5*time.Millisecond)
}

func TestSettlementEndToEnd(t *testing.T) {
	logger := zap.NewNop()
	bus := events.NewBus(logger, 16)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	}()

	f := newEngineFixture(t)
	f.orch.bus = bus
	WireSettlementDebits(bus, f.store, f.wallets, logger)

	tr, err := f.orch.Submit(context.Background(), request("sepolia", "base-sepolia", "0.5"))
	require.NoError(t, err)

	_, _, err = f.orch.ApplyObservation(tr.ID, oracle.Observation{
		Stage:            oracle.StageCompleted,
		SourceTxRef:      "0xsrc",
		ProofRef:         "p1",
		DestinationTxRef: "0xdst",
		FeePaid:          decimal.RequireFromString("0.0004"),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := f.wallets.State(context.Background(), "0xalice")
		return err == nil && st.Balance.LessThan(decimal.RequireFromString("10"))
	}, time.Second, 5*time.Millisecond)

	st, err := f.wallets.State(context.Background(), "0xalice")
	require.NoError(t, err)
	// amount 0.5 + observed fee 0.0004
	assert.True(t, st.Balance.Equal(decimal.RequireFromString("9.4996")), st.Balance.String())
}
