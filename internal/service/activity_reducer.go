package service

import (
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/types"
)

// transferTopic is keccak256("Transfer(address,address,uint256)")
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ActivityReducer folds a transaction stream into an ActivitySummary
type ActivityReducer struct {
	tokens map[common.Address]config.TokenContract
}

// NewActivityReducer creates a reducer that decodes transfers for the given tokens only
func NewActivityReducer(allowList []config.TokenContract) *ActivityReducer {
	tokens := make(map[common.Address]config.TokenContract, len(allowList))
	for _, t := range allowList {
		if !common.IsHexAddress(t.Address) {
			continue
		}
		tokens[common.HexToAddress(t.Address)] = t
	}
	return &ActivityReducer{tokens: tokens}
}

// tokenTransfer is an allow-listed ERC-20 transfer normalized to whole units
type tokenTransfer struct {
	from  string
	value float64
}

// Reduce builds the summary for address. Only successful transactions count.
// Native value and fees accumulate in wei and only when address is the sender.
// Allow-listed token transfers sent by address add to USD volume on top of the
// transaction quote.
func (r *ActivityReducer) Reduce(address string, txs []types.RawTransaction, now time.Time) types.ActivitySummary {
	summary := types.NewActivitySummary(address)
	var first *time.Time

	for _, tx := range txs {
		if !tx.Successful {
			continue
		}
		summary.TotalTx++

		if ts, ok := tx.SignedAt(); ok {
			if first == nil || ts.Before(*first) {
				t := ts.UTC()
				first = &t
			}
		}

		quote := usdQuote(tx.ValueQuote)
		if sameAddress(tx.FromAddress, address) {
			if v, ok := parseWei(tx.Value); ok {
				summary.TotalVolumeOutWei.Add(summary.TotalVolumeOutWei, v)
			}
			if fee, ok := parseWei(tx.FeesPaid); ok {
				summary.TotalFeesPaidWei.Add(summary.TotalFeesPaidWei, fee)
			}
			summary.TotalVolumeOutUSD += quote
		}

		biggest := quote
		for _, ev := range tx.LogEvents {
			transfer, ok := r.decodeTransfer(ev)
			if !ok {
				continue
			}
			if sameAddress(transfer.from, address) {
				summary.TotalVolumeOutUSD += transfer.value
			}
			if transfer.value > biggest {
				biggest = transfer.value
			}
		}
		if biggest > summary.BiggestTransferUSD {
			summary.BiggestTransferUSD = biggest
		}
	}

	if first != nil {
		summary.FirstTxTimestamp = first
		days := int64(now.Sub(*first) / (24 * time.Hour))
		if days < 0 {
			days = 0
		}
		summary.WalletAgeDays = &days
	}

	return summary
}

// decodeTransfer prefers the provider's decoding and falls back to the raw topics
func (r *ActivityReducer) decodeTransfer(ev types.RawLogEvent) (tokenTransfer, bool) {
	if !common.IsHexAddress(ev.SenderAddress) {
		return tokenTransfer{}, false
	}
	token, ok := r.tokens[common.HexToAddress(ev.SenderAddress)]
	if !ok {
		return tokenTransfer{}, false
	}

	var from, raw string
	switch {
	case ev.Decoded != nil && strings.EqualFold(ev.Decoded.Name, "Transfer"):
		from, _ = ev.Decoded.Param("from")
		raw, _ = ev.Decoded.Param("value")
	case len(ev.RawLogTopics) >= 3 && common.HexToHash(ev.RawLogTopics[0]) == transferTopic:
		from = common.BytesToAddress(common.HexToHash(ev.RawLogTopics[1]).Bytes()).Hex()
		raw = new(big.Int).SetBytes(common.FromHex(ev.RawLogData)).String()
	default:
		return tokenTransfer{}, false
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return tokenTransfer{}, false
	}
	value, _ := amount.Shift(-token.Decimals).Float64()
	return tokenTransfer{from: from, value: value}, true
}

func parseWei(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

func usdQuote(q *float64) float64 {
	if q == nil || math.IsNaN(*q) || math.IsInf(*q, 0) || *q < 0 {
		return 0
	}
	return *q
}

// sameAddress compares two addresses ignoring case and checksum
func sameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return strings.EqualFold(a, b)
}
