package service

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/types"
)

const (
	testAddr  = "0x1111111111111111111111111111111111111111"
	otherAddr = "0x2222222222222222222222222222222222222222"
	usdcAddr  = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	daiAddr   = "0x50c5725949a6f0c72e6c4a641f24049a917db0cb"
	junkToken = "0x9999999999999999999999999999999999999999"
)

var oneEth = "1000000000000000000"

func floatPtr(f float64) *float64 { return &f }

func newTestReducer() *ActivityReducer {
	return NewActivityReducer(config.DefaultTokenAllowList)
}

func decodedTransfer(contract, from, value string) types.RawLogEvent {
	return types.RawLogEvent{
		SenderAddress: contract,
		Decoded: &types.DecodedEvent{
			Name: "Transfer",
			Params: []types.DecodedParam{
				{Name: "from", Type: "address", Value: json.RawMessage(fmt.Sprintf("%q", from))},
				{Name: "to", Type: "address", Value: json.RawMessage(fmt.Sprintf("%q", otherAddr))},
				{Name: "value", Type: "uint256", Value: json.RawMessage(fmt.Sprintf("%q", value))},
			},
		},
	}
}

func TestActivityReducer_EndToEndScenario(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := now.Add(-400 * 24 * time.Hour)

	var txs []types.RawTransaction
	for i := 0; i < 3; i++ {
		txs = append(txs, types.RawTransaction{
			Successful:    true,
			FromAddress:   testAddr,
			ToAddress:     otherAddr,
			Value:         oneEth,
			FeesPaid:      "1000000000000000",
			BlockSignedAt: first.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		})
	}

	summary := newTestReducer().Reduce(testAddr, txs, now)

	assert.Equal(t, int64(3), summary.TotalTx)
	require.NotNil(t, summary.WalletAgeDays)
	assert.Equal(t, int64(400), *summary.WalletAgeDays)
	assert.Equal(t, "3000000000000000000", summary.TotalVolumeOutWei.String())
	assert.Equal(t, "3000000000000000", summary.TotalFeesPaidWei.String())
	assert.True(t, first.Equal(*summary.FirstTxTimestamp))

	points := CalculateScore(0, ScoreInput{Activity: summary})
	assert.Equal(t, int64(60), points)
}

func TestActivityReducer_SkipsUnsuccessful(t *testing.T) {
	txs := []types.RawTransaction{
		{Successful: false, FromAddress: testAddr, Value: oneEth, ValueQuote: floatPtr(3000), BlockSignedAt: "2020-01-01T00:00:00Z"},
		{Successful: true, FromAddress: otherAddr, ToAddress: testAddr, Value: oneEth, BlockSignedAt: "2024-01-01T00:00:00Z"},
	}

	summary := newTestReducer().Reduce(testAddr, txs, time.Now())

	assert.Equal(t, int64(1), summary.TotalTx)
	assert.Equal(t, 0, summary.TotalVolumeOutWei.Sign(), "incoming value never counts")
	assert.Zero(t, summary.TotalVolumeOutUSD)
	assert.Equal(t, 2024, summary.FirstTxTimestamp.Year(), "failed transactions do not set the first timestamp")
}

func TestActivityReducer_SenderMatchIsCaseInsensitive(t *testing.T) {
	mixed := "0xAbCdEf0000000000000000000000000000000001"
	txs := []types.RawTransaction{
		{Successful: true, FromAddress: strings.ToLower(mixed), Value: "5", FeesPaid: "2", ValueQuote: floatPtr(1.5)},
		{Successful: true, FromAddress: strings.ToUpper(mixed[2:]), Value: "5", FeesPaid: "2", ValueQuote: floatPtr(1.5)},
	}

	summary := newTestReducer().Reduce(mixed, txs, time.Now())

	assert.Equal(t, "10", summary.TotalVolumeOutWei.String())
	assert.Equal(t, "4", summary.TotalFeesPaidWei.String())
	assert.Equal(t, 3.0, summary.TotalVolumeOutUSD)
	assert.Nil(t, summary.FirstTxTimestamp)
	assert.Nil(t, summary.WalletAgeDays)
}

func TestActivityReducer_TokenTransfers(t *testing.T) {
	txs := []types.RawTransaction{
		{
			Successful:  true,
			FromAddress: otherAddr,
			ValueQuote:  floatPtr(2),
			LogEvents: []types.RawLogEvent{
				decodedTransfer(usdcAddr, testAddr, "250000000"),                 // 250 USDC sent by us
				decodedTransfer(daiAddr, otherAddr, "1000000000000000000000"),   // 1000 DAI sent by someone else
				decodedTransfer(junkToken, testAddr, "99999999999999999999999"), // not allow-listed
			},
		},
	}

	summary := newTestReducer().Reduce(testAddr, txs, time.Now())

	assert.InDelta(t, 250.0, summary.TotalVolumeOutUSD, 1e-9, "quote is not ours, token transfer is")
	assert.InDelta(t, 1000.0, summary.BiggestTransferUSD, 1e-9, "biggest counts any direction")
	assert.Equal(t, 0, summary.TotalVolumeOutWei.Sign())
}

func TestActivityReducer_RawTopicFallback(t *testing.T) {
	amount := new(big.Int).Mul(big.NewInt(42), big.NewInt(1_000_000))
	ev := types.RawLogEvent{
		SenderAddress: "0x" + strings.ToUpper(usdcAddr[2:]),
		RawLogTopics: []string{
			transferTopic.Hex(),
			"0x000000000000000000000000" + testAddr[2:],
			"0x000000000000000000000000" + otherAddr[2:],
		},
		RawLogData: fmt.Sprintf("0x%064x", amount),
	}
	txs := []types.RawTransaction{{Successful: true, FromAddress: testAddr, ValueQuote: floatPtr(10), LogEvents: []types.RawLogEvent{ev}}}

	summary := newTestReducer().Reduce(testAddr, txs, time.Now())

	assert.InDelta(t, 52.0, summary.TotalVolumeOutUSD, 1e-9, "quote plus token value double-count on purpose")
	assert.InDelta(t, 42.0, summary.BiggestTransferUSD, 1e-9)
}

func TestActivityReducer_IgnoresNonTransferEvents(t *testing.T) {
	ev := decodedTransfer(usdcAddr, testAddr, "1000000")
	ev.Decoded.Name = "Approval"
	txs := []types.RawTransaction{{Successful: true, FromAddress: otherAddr, LogEvents: []types.RawLogEvent{ev}}}

	summary := newTestReducer().Reduce(testAddr, txs, time.Now())
	assert.Zero(t, summary.TotalVolumeOutUSD)
	assert.Zero(t, summary.BiggestTransferUSD)
}

func TestActivityReducer_MalformedValuesAreSkipped(t *testing.T) {
	txs := []types.RawTransaction{
		{Successful: true, FromAddress: testAddr, Value: "not-a-number", FeesPaid: "-5", ValueQuote: floatPtr(-3)},
		{Successful: true, FromAddress: testAddr, Value: "7", FeesPaid: "1"},
	}

	summary := newTestReducer().Reduce(testAddr, txs, time.Now())

	assert.Equal(t, int64(2), summary.TotalTx)
	assert.Equal(t, "7", summary.TotalVolumeOutWei.String())
	assert.Equal(t, "1", summary.TotalFeesPaidWei.String())
	assert.Zero(t, summary.TotalVolumeOutUSD)
}

func TestActivityReducer_EmptyHistory(t *testing.T) {
	summary := newTestReducer().Reduce(testAddr, nil, time.Now())

	assert.Equal(t, testAddr, summary.Address)
	assert.Zero(t, summary.TotalTx)
	assert.NotNil(t, summary.TotalVolumeOutWei)
	assert.Nil(t, summary.WalletAgeDays)
}
