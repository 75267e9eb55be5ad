package wallet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider()
	ctx := context.Background()

	_, err := p.State(ctx, "0xghost")
	assert.ErrorIs(t, err, ErrUnknownAccount)

	p.SetAccount(State{
		Address:        "0xalice",
		ConnectedChain: "sepolia",
		Balance:        decimal.RequireFromString("5"),
	})

	st, err := p.State(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, "sepolia", st.ConnectedChain)
	assert.True(t, st.Balance.Equal(decimal.RequireFromString("5")))
}

func TestSwitchChain(t *testing.T) {
	p := NewStaticProvider()
	p.SetAccount(State{Address: "0xalice", ConnectedChain: "sepolia", Balance: decimal.Zero})

	p.SwitchChain("0xalice", "base-sepolia")

	st, err := p.State(context.Background(), "0xalice")
	require.NoError(t, err)
	assert.Equal(t, "base-sepolia", st.ConnectedChain)

	// Unknown accounts are ignored.
	p.SwitchChain("0xghost", "sepolia")
}

func TestDebit(t *testing.T) {
	p := NewStaticProvider()
	p.SetAccount(State{Address: "0xalice", ConnectedChain: "sepolia", Balance: decimal.RequireFromString("2")})

	p.Debit("0xalice", decimal.RequireFromString("0.5"))

	st, err := p.State(context.Background(), "0xalice")
	require.NoError(t, err)
	assert.True(t, st.Balance.Equal(decimal.RequireFromString("1.5")))
}
