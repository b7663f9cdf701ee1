// Package types provides common type definitions for the reputation engine.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ServiceError represents a structured rejection returned to callers
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Rejection codes surfaced by the profile operations.
const (
	CodeInvalidInput             = "INVALID_INPUT"
	CodeInvalidAddress           = "INVALID_ADDRESS"
	CodeInvalidTier              = "INVALID_TIER"
	CodeUnknownTask              = "UNKNOWN_TASK"
	CodeProfileNotFound          = "PROFILE_NOT_FOUND"
	CodeDuplicateCheckIn         = "DUPLICATE_CHECK_IN"
	CodeBoxAlreadyClaimed        = "BOX_ALREADY_CLAIMED"
	CodeInsufficientStreak       = "INSUFFICIENT_STREAK"
	CodeTaskAlreadyClaimed       = "TASK_ALREADY_CLAIMED"
	CodeDailyCastAlreadyRewarded = "DAILY_CAST_ALREADY_REWARDED"
	CodeProviderNotConfigured    = "PROVIDER_NOT_CONFIGURED"
	CodeCastNotFound             = "CAST_NOT_FOUND"
	CodeCastNotOwned             = "CAST_NOT_OWNED"
)

// ErrReferralCodeTaken is returned by a profile store when a new profile's
// referral code collides with an existing one
var ErrReferralCodeTaken = errors.New("referral code already taken")

// ErrProfileExists is returned by a profile store when a profile for the
// identity was created concurrently.
var ErrProfileExists = errors.New("profile already exists")

// NewServiceError builds a ServiceError with optional details
func NewServiceError(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{Code: code, Message: message, Details: details}
}

// ActivitySummary is the reduced view of an address's transaction history.
// Native amounts are exact integers in wei; USD figures come from provider quotes.
type ActivitySummary struct {
	Address            string
	TotalTx            int64
	TotalVolumeOutWei  *big.Int
	TotalVolumeOutUSD  float64
	TotalFeesPaidWei   *big.Int
	FirstTxTimestamp   *time.Time
	WalletAgeDays      *int64
	BiggestTransferUSD float64
}

// NewActivitySummary returns a zero summary for address
func NewActivitySummary(address string) ActivitySummary {
	return ActivitySummary{
		Address:           address,
		TotalVolumeOutWei: new(big.Int),
		TotalFeesPaidWei:  new(big.Int),
	}
}

type activitySummaryJSON struct {
	Address            string     `json:"address"`
	TotalTx            int64      `json:"totalTx"`
	TotalVolumeOutWei  string     `json:"totalVolumeOutWei"`
	TotalVolumeOutUSD  float64    `json:"totalVolumeOutUsd"`
	TotalFeesPaidWei   string     `json:"totalFeesPaidWei"`
	FirstTxTimestamp   *time.Time `json:"firstTxTimestamp"`
	WalletAgeDays      *int64     `json:"walletAgeDays"`
	BiggestTransferUSD float64    `json:"biggestTransferUsd"`
}

// MarshalJSON writes big integer fields as decimal strings
func (s ActivitySummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(activitySummaryJSON{
		Address:            s.Address,
		TotalTx:            s.TotalTx,
		TotalVolumeOutWei:  bigString(s.TotalVolumeOutWei),
		TotalVolumeOutUSD:  s.TotalVolumeOutUSD,
		TotalFeesPaidWei:   bigString(s.TotalFeesPaidWei),
		FirstTxTimestamp:   s.FirstTxTimestamp,
		WalletAgeDays:      s.WalletAgeDays,
		BiggestTransferUSD: s.BiggestTransferUSD,
	})
}

// UnmarshalJSON restores exact integers from their decimal string form
func (s *ActivitySummary) UnmarshalJSON(data []byte) error {
	var raw activitySummaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	volume, err := parseBig(raw.TotalVolumeOutWei)
	if err != nil {
		return fmt.Errorf("totalVolumeOutWei: %w", err)
	}
	fees, err := parseBig(raw.TotalFeesPaidWei)
	if err != nil {
		return fmt.Errorf("totalFeesPaidWei: %w", err)
	}

	*s = ActivitySummary{
		Address:            raw.Address,
		TotalTx:            raw.TotalTx,
		TotalVolumeOutWei:  volume,
		TotalVolumeOutUSD:  raw.TotalVolumeOutUSD,
		TotalFeesPaidWei:   fees,
		FirstTxTimestamp:   raw.FirstTxTimestamp,
		WalletAgeDays:      raw.WalletAgeDays,
		BiggestTransferUSD: raw.BiggestTransferUSD,
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// HoldingsSnapshot holds badge flags and the USD value of allow-listed balances
type HoldingsSnapshot struct {
	Badges   map[string]bool `json:"badges"`
	ValueUSD float64         `json:"valueUsd"`
}

// NewHoldingsSnapshot returns a snapshot with every key set to false
func NewHoldingsSnapshot(keys []string) HoldingsSnapshot {
	badges := make(map[string]bool, len(keys))
	for _, k := range keys {
		badges[k] = false
	}
	return HoldingsSnapshot{Badges: badges}
}

// BadgeCount returns the number of true badges
func (h HoldingsSnapshot) BadgeCount() int {
	n := 0
	for _, held := range h.Badges {
		if held {
			n++
		}
	}
	return n
}

// BestPost is the most engaged cast of an identity
type BestPost struct {
	Hash    string `json:"hash"`
	Text    string `json:"text,omitempty"`
	Likes   int64  `json:"likes"`
	Recasts int64  `json:"recasts"`
	Replies int64  `json:"replies"`
}

// Engagement is the plain sum of likes, recasts and replies
func (b BestPost) Engagement() int64 {
	return b.Likes + b.Recasts + b.Replies
}

// SocialMetrics holds the social graph view of an identity
type SocialMetrics struct {
	CastCount int64     `json:"castCount"`
	BestPost  *BestPost `json:"bestPost,omitempty"`
	Score     *float64  `json:"socialScore,omitempty"`
}

// StatsCacheEntry is the cached aggregate for one address
type StatsCacheEntry struct {
	Address     string           `json:"address"`
	Activity    ActivitySummary  `json:"activity"`
	Holdings    HoldingsSnapshot `json:"holdings"`
	Social      SocialMetrics    `json:"social"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// IsFresh reports whether the entry is younger than window at now.
// A zero window is never fresh.
func (e *StatsCacheEntry) IsFresh(now time.Time, window time.Duration) bool {
	if e == nil || window <= 0 {
		return false
	}
	return now.Sub(e.LastUpdated) < window
}
