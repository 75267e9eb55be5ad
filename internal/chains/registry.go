// Package chains holds the static catalogue of supported networks and
// per-route transfer parameters (minimum amounts, duration estimates).
package chains

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrChainNotFound = errors.New("chain not found in registry")

// Descriptor describes a single supported network.
type Descriptor struct {
	Key          string          `json:"key"`
	DisplayName  string          `json:"display_name"`
	ChainID      uint64          `json:"chain_id"`
	NativeSymbol string          `json:"native_symbol"`
	ExplorerURL  string          `json:"explorer_url"`
	MinTransfer  decimal.Decimal `json:"min_transfer"`
	Supported    bool            `json:"supported"`
}

// Route is an ordered (source, destination) chain pair.
type Route struct {
	Source      string
	Destination string
}

func (r Route) String() string {
	return r.Source + "->" + r.Destination
}

// RouteInfo carries the transfer parameters for one route.
type RouteInfo struct {
	MinTransfer       decimal.Decimal
	EstimatedDuration time.Duration
}

// Conservative defaults applied when a route is missing from configuration.
// Route lookups degrade gracefully instead of failing.
var (
	DefaultMinTransfer       = decimal.RequireFromString("0.001")
	DefaultEstimatedDuration = 5 * time.Minute
)

// Registry is the immutable chain catalogue. Built once at startup and
// read concurrently without locking.
type Registry struct {
	chains []Descriptor
	index  map[string]int
	routes map[Route]RouteInfo
}

// NewRegistry builds a registry from explicit descriptors and route overrides.
func NewRegistry(descriptors []Descriptor, routes map[Route]RouteInfo) *Registry {
	r := &Registry{
		chains: make([]Descriptor, len(descriptors)),
		index:  make(map[string]int, len(descriptors)),
		routes: make(map[Route]RouteInfo, len(routes)),
	}
	copy(r.chains, descriptors)
	for i, d := range r.chains {
		r.index[d.Key] = i
	}
	for k, v := range routes {
		r.routes[k] = v
	}
	return r
}

// List returns the supported chains in catalogue order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.chains))
	copy(out, r.chains)
	return out
}

// Resolve looks up a chain by key.
func (r *Registry) Resolve(key string) (Descriptor, error) {
	i, ok := r.index[key]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrChainNotFound, key)
	}
	return r.chains[i], nil
}

// RouteInfo returns the transfer parameters for a route. Unknown routes get
// conservative defaults; this never fails.
func (r *Registry) RouteInfo(route Route) RouteInfo {
	if info, ok := r.routes[route]; ok {
		return info
	}
	info := RouteInfo{
		MinTransfer:       DefaultMinTransfer,
		EstimatedDuration: DefaultEstimatedDuration,
	}
	// Fall back to the source chain's configured minimum when available.
	if d, err := r.Resolve(route.Source); err == nil && d.MinTransfer.IsPositive() {
		info.MinTransfer = d.MinTransfer
	}
	return info
}

// ExplorerTxURL renders a block-explorer link for a transaction reference.
// Returns "" when the chain is unknown or has no explorer configured.
func (r *Registry) ExplorerTxURL(key, txRef string) string {
	d, err := r.Resolve(key)
	if err != nil || d.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(d.ExplorerURL, "/") + "/tx/" + txRef
}

// Default returns the built-in Sepolia testnet catalogue.
func Default() *Registry {
	min := decimal.RequireFromString("0.001")
	descriptors := []Descriptor{
		{Key: "sepolia", DisplayName: "Ethereum Sepolia", ChainID: 11155111, NativeSymbol: "ETH", ExplorerURL: "https://sepolia.etherscan.io", MinTransfer: min, Supported: true},
		{Key: "optimism-sepolia", DisplayName: "Optimism Sepolia", ChainID: 11155420, NativeSymbol: "ETH", ExplorerURL: "https://sepolia-optimism.etherscan.io", MinTransfer: min, Supported: true},
		{Key: "base-sepolia", DisplayName: "Base Sepolia", ChainID: 84532, NativeSymbol: "ETH", ExplorerURL: "https://sepolia.basescan.org", MinTransfer: min, Supported: true},
		{Key: "arbitrum-sepolia", DisplayName: "Arbitrum Sepolia", ChainID: 421614, NativeSymbol: "ETH", ExplorerURL: "https://sepolia.arbiscan.io", MinTransfer: min, Supported: true},
		{Key: "blast-sepolia", DisplayName: "Blast Sepolia", ChainID: 168587773, NativeSymbol: "ETH", ExplorerURL: "https://testnet.blastscan.io", MinTransfer: min, Supported: false},
		{Key: "scroll-sepolia", DisplayName: "Scroll Sepolia", ChainID: 534351, NativeSymbol: "ETH", ExplorerURL: "https://sepolia.scrollscan.com", MinTransfer: min, Supported: false},
	}

	// Rollup-to-rollup routes settle faster than routes touching L1.
	routes := make(map[Route]RouteInfo)
	l2 := []string{"optimism-sepolia", "base-sepolia", "arbitrum-sepolia"}
	for _, dst := range l2 {
		routes[Route{Source: "sepolia", Destination: dst}] = RouteInfo{MinTransfer: min, EstimatedDuration: 4 * time.Minute}
		routes[Route{Source: dst, Destination: "sepolia"}] = RouteInfo{MinTransfer: min, EstimatedDuration: 5 * time.Minute}
	}
	for _, src := range l2 {
		for _, dst := range l2 {
			if src == dst {
				continue
			}
			routes[Route{Source: src, Destination: dst}] = RouteInfo{MinTransfer: min, EstimatedDuration: 2 * time.Minute}
		}
	}
	return NewRegistry(descriptors, routes)
}
