// Package adapter contains the HTTP clients for the outbound data providers.
package adapter

import (
	"context"
	"fmt"

	"github.com/reputation-engine/internal/types"
)

// LedgerProvider pages through an address's transaction history
type LedgerProvider interface {
	FetchTransactions(ctx context.Context, address string) ([]types.RawTransaction, error)
}

// BalancesProvider returns one balances snapshot for an address
type BalancesProvider interface {
	FetchBalances(ctx context.Context, address string) ([]types.RawBalance, error)
}

// SocialProvider reads an identity's casts and reputation
type SocialProvider interface {
	FetchCastCount(ctx context.Context, fid int64) (int64, error)
	FetchPopularCasts(ctx context.Context, fid int64) ([]types.RawCast, error)
	FetchUserScore(ctx context.Context, fid int64) (*float64, error)
	// FetchCast looks up one cast by hash; nil, nil when it does not exist
	FetchCast(ctx context.Context, hash string) (*types.RawCast, error)
}

// PartialResultError reports that pagination stopped early. The items
// gathered before the failure are still returned alongside it.
type PartialResultError struct {
	Provider string
	Pages    int
	Items    int
	Cause    error
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("%s pagination stopped after %d pages (%d items): %v", e.Provider, e.Pages, e.Items, e.Cause)
}

func (e *PartialResultError) Unwrap() error {
	return e.Cause
}
