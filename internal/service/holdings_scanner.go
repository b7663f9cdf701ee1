package service

import (
	"context"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/reputation-engine/internal/adapter"
	"github.com/reputation-engine/internal/types"
)

// HoldingsScanner maps an address's balances onto the badge table
type HoldingsScanner struct {
	provider adapter.BalancesProvider
	badges   map[string]string // normalized contract -> badge key
	keys     []string
}

// NewHoldingsScanner creates a scanner for the given badge key -> contract table
func NewHoldingsScanner(provider adapter.BalancesProvider, badgeContracts map[string]string) *HoldingsScanner {
	badges := make(map[string]string, len(badgeContracts))
	keys := make([]string, 0, len(badgeContracts))
	for key, contract := range badgeContracts {
		badges[normalizeContract(contract)] = key
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return &HoldingsScanner{provider: provider, badges: badges, keys: keys}
}

// Keys returns the badge keys in stable order
func (s *HoldingsScanner) Keys() []string {
	return s.keys
}

// Empty returns the all-false snapshot
func (s *HoldingsScanner) Empty() types.HoldingsSnapshot {
	return types.NewHoldingsSnapshot(s.keys)
}

// Scan fetches one balances snapshot and marks badges. A provider failure
// returns the empty snapshot together with the error so that the caller can
// decide whether to fall back to a cached value.
func (s *HoldingsScanner) Scan(ctx context.Context, address string) (types.HoldingsSnapshot, error) {
	snapshot := s.Empty()

	balances, err := s.provider.FetchBalances(ctx, address)
	if err != nil {
		return snapshot, err
	}

	for _, b := range balances {
		key, ok := s.badges[normalizeContract(b.ContractAddress)]
		if !ok {
			continue
		}
		snapshot.ValueUSD += usdQuote(b.Quote)
		if b.Positive() {
			snapshot.Badges[key] = true
		}
	}
	return snapshot, nil
}

func normalizeContract(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}
