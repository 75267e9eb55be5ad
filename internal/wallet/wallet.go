// Package wallet exposes point-in-time wallet state to the bridge engine.
// State is a snapshot: the connected network and balance can change between
// a precondition check and submission, so callers re-read it at submit time.
package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrUnknownAccount = errors.New("unknown wallet account")

// State is one account's observed wallet state.
type State struct {
	Address        string
	ConnectedChain string
	Balance        decimal.Decimal
}

// Provider reads current wallet state. Implementations may hit the network;
// callers must tolerate latency and treat results as immediately stale.
type Provider interface {
	State(ctx context.Context, address string) (State, error)
}

// StaticProvider is the demo-mode wallet: balances and connected networks
// are held in memory and mutated by demo or test drivers.
type StaticProvider struct {
	mu       sync.RWMutex
	accounts map[string]State
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{accounts: make(map[string]State)}
}

func (p *StaticProvider) State(ctx context.Context, address string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.accounts[address]
	if !ok {
		return State{}, ErrUnknownAccount
	}
	return st, nil
}

// SetAccount installs or replaces an account snapshot.
func (p *StaticProvider) SetAccount(st State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[st.Address] = st
}

// SwitchChain changes the network an account is connected to, mirroring a
// user switching networks in their wallet extension.
func (p *StaticProvider) SwitchChain(address, chainKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.accounts[address]; ok {
		st.ConnectedChain = chainKey
		p.accounts[address] = st
	}
}

// Debit reduces an account's balance, used when a simulated transfer settles.
func (p *StaticProvider) Debit(address string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.accounts[address]; ok {
		st.Balance = st.Balance.Sub(amount)
		p.accounts[address] = st
	}
}
