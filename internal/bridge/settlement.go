package bridge

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crossmesh/bridgekit/internal/events"
)

// Debiter applies a balance deduction to a wallet account.
type Debiter interface {
	Debit(address string, amount decimal.Decimal)
}

// WireSettlementDebits deducts a completed transfer's amount plus fee from the
// sender's wallet, mirroring the balance change a real settlement causes.
// Demo-mode wiring: the in-memory wallet has no chain to observe, so the
// engine applies the effect itself.
func WireSettlementDebits(bus *events.Bus, store *Store, wallets Debiter, logger *zap.Logger) events.Subscription {
	log := logger.Named("settlement")
	return bus.SubscribeFunc(events.TransferCompleted, func(ctx context.Context, e events.Event) error {
		ev, ok := e.(*events.TransferCompletedEvent)
		if !ok {
			return nil
		}
		t, err := store.Get(ev.TransferID)
		if err != nil {
			return err
		}
		debit := t.Amount.Add(t.FeePaid)
		wallets.Debit(t.Sender, debit)
		log.Debug("Debited settled transfer",
			zap.String("id", t.ID),
			zap.String("debit", debit.String()))
		return nil
	})
}
