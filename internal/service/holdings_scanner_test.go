package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/types"
)

type mockBalancesProvider struct {
	balances []types.RawBalance
	err      error
	calls    int
}

func (m *mockBalancesProvider) FetchBalances(ctx context.Context, address string) ([]types.RawBalance, error) {
	m.calls++
	return m.balances, m.err
}

func TestHoldingsScanner_MarksAllowListedBadges(t *testing.T) {
	provider := &mockBalancesProvider{balances: []types.RawBalance{
		{ContractAddress: strings.ToUpper(config.DefaultBadgeContracts["degen"]), Balance: "1000", Quote: floatPtr(40)},
		{ContractAddress: config.DefaultBadgeContracts["brett"], Balance: "0", Quote: floatPtr(5)},
		{ContractAddress: config.DefaultBadgeContracts["usdc"], Balance: "2500000", Quote: floatPtr(2.5)},
		{ContractAddress: junkToken, Balance: "99999", Quote: floatPtr(10_000)},
	}}

	scanner := NewHoldingsScanner(provider, config.DefaultBadgeContracts)
	snapshot, err := scanner.Scan(context.Background(), testAddr)

	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
	assert.Len(t, snapshot.Badges, 9)
	assert.True(t, snapshot.Badges["degen"])
	assert.False(t, snapshot.Badges["brett"], "zero balance contributes value but no badge")
	assert.True(t, snapshot.Badges["usdc"])
	assert.Equal(t, 2, snapshot.BadgeCount())
	assert.InDelta(t, 47.5, snapshot.ValueUSD, 1e-9, "non allow-listed value is ignored")
}

func TestHoldingsScanner_FailureYieldsEmptySnapshot(t *testing.T) {
	provider := &mockBalancesProvider{err: errors.New("502")}
	scanner := NewHoldingsScanner(provider, config.DefaultBadgeContracts)

	snapshot, err := scanner.Scan(context.Background(), testAddr)

	assert.Error(t, err)
	assert.Zero(t, snapshot.BadgeCount())
	assert.Zero(t, snapshot.ValueUSD)
	assert.Len(t, snapshot.Badges, 9)
}

func TestHoldingsScanner_KeysSorted(t *testing.T) {
	scanner := NewHoldingsScanner(&mockBalancesProvider{}, map[string]string{"b": "0x2", "a": "0x1"})
	assert.Equal(t, []string{"a", "b"}, scanner.Keys())
}
