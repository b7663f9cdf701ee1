package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RawTransaction is a transaction item as returned by the history provider
type RawTransaction struct {
	TxHash        string        `json:"tx_hash"`
	Successful    bool          `json:"successful"`
	FromAddress   string        `json:"from_address"`
	ToAddress     string        `json:"to_address"`
	Value         string        `json:"value"`
	FeesPaid      string        `json:"fees_paid"`
	ValueQuote    *float64      `json:"value_quote"`
	BlockSignedAt string        `json:"block_signed_at"`
	LogEvents     []RawLogEvent `json:"log_events"`
}

// SignedAt parses BlockSignedAt. ok is false when missing or malformed.
func (t RawTransaction) SignedAt() (time.Time, bool) {
	if t.BlockSignedAt == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, t.BlockSignedAt)
	if err != nil || ts.IsZero() || ts.Unix() <= 0 {
		return time.Time{}, false
	}
	return ts, true
}

// RawLogEvent is an emitted log with optional provider decoding
type RawLogEvent struct {
	SenderAddress  string        `json:"sender_address"`
	RawLogTopics   []string      `json:"raw_log_topics"`
	RawLogData     string        `json:"raw_log_data"`
	SenderDecimals *int32        `json:"sender_contract_decimals"`
	Decoded        *DecodedEvent `json:"decoded"`
}

// DecodedEvent is the provider's ABI decoding of a log
type DecodedEvent struct {
	Name   string         `json:"name"`
	Params []DecodedParam `json:"params"`
}

// Param returns the named parameter's value as a string
func (d *DecodedEvent) Param(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, p := range d.Params {
		if strings.EqualFold(p.Name, name) {
			return p.String(), true
		}
	}
	return "", false
}

// DecodedParam is a single decoded event argument
type DecodedParam struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// String renders the raw value without JSON quoting
func (p DecodedParam) String() string {
	if len(p.Value) == 0 || string(p.Value) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(p.Value, &n); err == nil {
		return n.String()
	}
	return string(p.Value)
}

// RawBalance is one balance entry from the balances provider
type RawBalance struct {
	ContractAddress  string   `json:"contract_address"`
	ContractTicker   string   `json:"contract_ticker_symbol"`
	ContractDecimals *int32   `json:"contract_decimals"`
	Balance          string   `json:"balance"`
	Quote            *float64 `json:"quote"`
}

// Positive reports whether the integer balance is strictly greater than zero
func (b RawBalance) Positive() bool {
	s := strings.TrimSpace(b.Balance)
	if s == "" || strings.HasPrefix(s, "-") {
		return false
	}
	return strings.Trim(s, "0") != ""
}

// RawCast is one cast from the social feed
type RawCast struct {
	Hash      string          `json:"hash"`
	Text      string          `json:"text"`
	Author    *RawCastAuthor  `json:"author"`
	Reactions *RawReactions   `json:"reactions"`
	Replies   json.RawMessage `json:"replies"`
	Likes     json.RawMessage `json:"likes"`
	Recasts   json.RawMessage `json:"recasts"`
}

// RawCastAuthor identifies who posted a cast
type RawCastAuthor struct {
	FID int64 `json:"fid"`
}

// RawReactions is the nested reaction shape
type RawReactions struct {
	LikesCount   *int64            `json:"likes_count"`
	RecastsCount *int64            `json:"recasts_count"`
	Likes        []json.RawMessage `json:"likes"`
	Recasts      []json.RawMessage `json:"recasts"`
}

// CountOf reads an engagement count that may be a number, a numeric string,
// an array, or an object carrying "count".
func CountOf(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
		return 0
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return int64(len(arr))
	}
	var obj struct {
		Count *int64 `json:"count"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Count != nil {
		return *obj.Count
	}
	return 0
}
