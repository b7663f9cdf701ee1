package types

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivitySummary_JSONKeepsBigIntegersExact(t *testing.T) {
	volume, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	first := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	age := int64(400)

	in := ActivitySummary{
		Address:            "0xabc",
		TotalTx:            3,
		TotalVolumeOutWei:  volume,
		TotalVolumeOutUSD:  12.5,
		TotalFeesPaidWei:   big.NewInt(3_000_000_000_000_000),
		FirstTxTimestamp:   &first,
		WalletAgeDays:      &age,
		BiggestTransferUSD: 10,
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"totalVolumeOutWei":"123456789012345678901234567890"`)
	assert.Contains(t, string(data), `"totalFeesPaidWei":"3000000000000000"`)

	var out ActivitySummary
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 0, in.TotalVolumeOutWei.Cmp(out.TotalVolumeOutWei))
	assert.Equal(t, 0, in.TotalFeesPaidWei.Cmp(out.TotalFeesPaidWei))
	assert.True(t, first.Equal(*out.FirstTxTimestamp))
	assert.Equal(t, age, *out.WalletAgeDays)
}

func TestActivitySummary_UnmarshalRejectsGarbage(t *testing.T) {
	var out ActivitySummary
	err := json.Unmarshal([]byte(`{"totalVolumeOutWei":"12x"}`), &out)
	assert.Error(t, err)
}

func TestActivitySummary_NilBigIntsMarshalAsZero(t *testing.T) {
	data, err := json.Marshal(ActivitySummary{Address: "0x1"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"totalVolumeOutWei":"0"`)
}

func TestHoldingsSnapshot_BadgeCount(t *testing.T) {
	h := NewHoldingsSnapshot([]string{"a", "b", "c"})
	assert.Equal(t, 0, h.BadgeCount())
	h.Badges["a"] = true
	h.Badges["c"] = true
	assert.Equal(t, 2, h.BadgeCount())
}

func TestStatsCacheEntry_IsFresh(t *testing.T) {
	now := time.Now()
	entry := &StatsCacheEntry{LastUpdated: now.Add(-30 * time.Minute)}

	assert.True(t, entry.IsFresh(now, time.Hour))
	assert.False(t, entry.IsFresh(now, 10*time.Minute))
	assert.False(t, entry.IsFresh(now, 0))

	var missing *StatsCacheEntry
	assert.False(t, missing.IsFresh(now, time.Hour))
}

func TestRawBalance_Positive(t *testing.T) {
	tests := map[string]bool{
		"":     false,
		"0":    false,
		"000":  false,
		"-5":   false,
		"1":    true,
		"1000": true,
	}
	for balance, want := range tests {
		assert.Equal(t, want, RawBalance{Balance: balance}.Positive(), balance)
	}
}

func TestCountOf(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{``, 0},
		{`null`, 0},
		{`7`, 7},
		{`"12"`, 12},
		{`[{"fid":1},{"fid":2}]`, 2},
		{`{"count":5}`, 5},
		{`{"other":5}`, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountOf(json.RawMessage(tt.raw)), tt.raw)
	}
}

func TestDecodedEvent_Param(t *testing.T) {
	var ev DecodedEvent
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Transfer",
		"params": [
			{"name": "from", "type": "address", "value": "0xAbC"},
			{"name": "value", "type": "uint256", "value": 1500000}
		]
	}`), &ev))

	from, ok := ev.Param("from")
	assert.True(t, ok)
	assert.Equal(t, "0xAbC", from)

	value, ok := ev.Param("VALUE")
	assert.True(t, ok)
	assert.Equal(t, "1500000", value)

	_, ok = ev.Param("to")
	assert.False(t, ok)
}

func TestRawTransaction_SignedAt(t *testing.T) {
	_, ok := RawTransaction{}.SignedAt()
	assert.False(t, ok)

	_, ok = RawTransaction{BlockSignedAt: "yesterday"}.SignedAt()
	assert.False(t, ok)

	ts, ok := RawTransaction{BlockSignedAt: "2024-05-01T10:00:00Z"}.SignedAt()
	assert.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
}
